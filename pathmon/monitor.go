//go:build windows

// Package pathmon watches the directories that hold the currently excluded
// application paths and the arrival/departure of removable volumes, and
// asks the device client to re-push the exclusion configuration whenever
// either signal fires.
package pathmon

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procReadDirectoryChangesW = modkernel32.NewProc("ReadDirectoryChangesW")
)

const (
	filterNotifyChanges = windows.FILE_NOTIFY_CHANGE_FILE_NAME |
		windows.FILE_NOTIFY_CHANGE_DIR_NAME |
		windows.FILE_NOTIFY_CHANGE_ATTRIBUTES |
		windows.FILE_NOTIFY_CHANGE_LAST_WRITE

	notifyBufferSize = 4096
)

// VolumeEvent signals that a volume was mounted or dismounted; Monitor
// doesn't care which volume or in which direction, only that the monitored
// paths may now resolve differently.
type VolumeEvent struct{}

// configSetter is the subset of splittun.Client the monitor needs. It talks
// to the device directly, bypassing the request serialiser, because
// re-resolution runs independently of any in-flight SetPaths request and
// must not wait behind it.
type configSetter interface {
	SetConfig(devicePaths []string) error
	ClearConfig() error
}

// Monitor watches the configured paths' parent directories for changes and
// the external volume-event stream, and re-pushes the configuration when
// either fires.
type Monitor struct {
	client configSetter

	mu    sync.Mutex
	paths []string

	watchMu  sync.Mutex
	watchers map[string]*dirWatcher

	notify chan struct{}
}

// NewMonitor constructs a Monitor bound to client. Call Run to start
// watching and SetPaths whenever the exclusion set changes.
func NewMonitor(client configSetter) *Monitor {
	return &Monitor{
		client:   client,
		watchers: make(map[string]*dirWatcher),
		notify:   make(chan struct{}, 1),
	}
}

// SetPaths replaces the monitored path list and (re)starts directory
// watches for every unique parent directory among them. It does not itself
// push a new configuration; the caller (the request serialiser) already
// did that via SetConfig/ClearConfig.
// SetPaths returns an error only when every requested directory failed to
// come under watch (the monitor is effectively not functioning); a partial
// failure is logged and otherwise ignored, since the surviving watches
// still do useful work.
func (m *Monitor) SetPaths(paths []string) error {
	m.mu.Lock()
	m.paths = append([]string(nil), paths...)
	m.mu.Unlock()

	dirs := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}

	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	for dir := range m.watchers {
		if _, ok := dirs[dir]; !ok {
			m.watchers[dir].close()
			delete(m.watchers, dir)
		}
	}

	failures := 0
	for dir := range dirs {
		if _, ok := m.watchers[dir]; ok {
			continue
		}
		w, err := newDirWatcher(dir, m.signalChanged)
		if err != nil {
			log.Printf("pathmon: failed to watch %q: %v", dir, err)
			failures++
			continue
		}
		m.watchers[dir] = w
	}

	if len(dirs) > 0 && failures == len(dirs) {
		return fmt.Errorf("failed to watch any of %d requested director%s", len(dirs), pluralSuffix(len(dirs)))
	}
	return nil
}

func pluralSuffix(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func (m *Monitor) signalChanged() {
	select {
	case m.notify <- struct{}{}:
	default:
		// A notification is already pending; re-resolution will pick up
		// the latest path list when it runs.
	}
}

// Run consumes volume events and directory-change notifications until quit
// fires, re-resolving the configuration on every signal. It is meant to run
// on its own goroutine.
func (m *Monitor) Run(quit <-chan struct{}, volumes <-chan VolumeEvent) {
	for {
		select {
		case <-quit:
			m.closeAllWatchers()
			return
		case <-volumes:
			m.reresolve()
		case <-m.notify:
			m.reresolve()
		}
	}
}

func (m *Monitor) reresolve() {
	m.mu.Lock()
	paths := append([]string(nil), m.paths...)
	m.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	if err := m.client.SetConfig(paths); err != nil {
		log.Printf("pathmon: failed to re-push configuration: %v", err)
	}
}

func (m *Monitor) closeAllWatchers() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for dir, w := range m.watchers {
		w.close()
		delete(m.watchers, dir)
	}
}

// dirWatcher holds one ReadDirectoryChangesW subscription against a single
// directory. The content of the notification is not inspected: any change
// is treated as "paths changed" per spec, since the driver-side
// reconciliation is idempotent either way.
type dirWatcher struct {
	handle windows.Handle

	once        sync.Once
	closeHandle windows.Handle
}

func newDirWatcher(dir string, onChange func()) (*dirWatcher, error) {
	pathPtr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, err
	}

	w := &dirWatcher{handle: handle}
	// The close-signal event is created up front so close() never races
	// loop's goroutine, which waits on w.closeHandle from its first pass.
	w.closeHandle, _ = windows.CreateEvent(nil, 1, 0, nil)
	go w.loop(onChange)
	return w, nil
}

func (w *dirWatcher) loop(onChange func()) {
	buf := make([]byte, notifyBufferSize)
	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return
	}
	defer windows.CloseHandle(event)

	for {
		overlapped := &windows.Overlapped{HEvent: event}
		var bytesReturned uint32

		ret, _, callErr := procReadDirectoryChangesW.Call(
			uintptr(w.handle),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			0, // bWatchSubtree: only this directory, not its subtree
			uintptr(filterNotifyChanges),
			uintptr(unsafe.Pointer(&bytesReturned)),
			uintptr(unsafe.Pointer(overlapped)),
			0,
		)
		if ret == 0 && callErr != windows.ERROR_IO_PENDING {
			return
		}

		handles := []windows.Handle{event, w.closeHandle}
		idx, waitErr := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if waitErr != nil {
			return
		}
		if idx != windows.WAIT_OBJECT_0 {
			return
		}

		if err := windows.GetOverlappedResult(w.handle, overlapped, &bytesReturned, true); err != nil {
			return
		}

		onChange()
	}
}

func (w *dirWatcher) close() {
	w.once.Do(func() {
		if w.closeHandle != 0 {
			windows.SetEvent(w.closeHandle)
			windows.CloseHandle(w.closeHandle)
		}
		windows.CloseHandle(w.handle)
	})
}
