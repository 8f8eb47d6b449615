//go:build windows

package pathmon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeConfigSetter struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeConfigSetter) SetConfig(devicePaths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), devicePaths...))
	return nil
}

func (f *fakeConfigSetter) ClearConfig() error { return nil }

func (f *fakeConfigSetter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestMonitor_ReresolveIsNoopWithoutPaths(t *testing.T) {
	setter := &fakeConfigSetter{}
	m := NewMonitor(setter)
	m.reresolve()
	assert.Equal(t, 0, setter.callCount())
}

func TestMonitor_DirectoryChangeTriggersSetConfig(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	assert.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	setter := &fakeConfigSetter{}
	m := NewMonitor(setter)
	assert.NoError(t, m.SetPaths([]string{target}))

	quit := make(chan struct{})
	volumes := make(chan VolumeEvent)
	go m.Run(quit, volumes)
	defer close(quit)

	assert.NoError(t, os.WriteFile(target, []byte("xy"), 0o644))

	assert.Eventually(t, func() bool {
		return setter.callCount() > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMonitor_VolumeEventTriggersSetConfig(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	assert.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	setter := &fakeConfigSetter{}
	m := NewMonitor(setter)
	assert.NoError(t, m.SetPaths([]string{target}))

	quit := make(chan struct{})
	volumes := make(chan VolumeEvent, 1)
	go m.Run(quit, volumes)
	defer close(quit)

	volumes <- VolumeEvent{}

	assert.Eventually(t, func() bool {
		return setter.callCount() > 0
	}, 2*time.Second, 20*time.Millisecond)
}
