//go:build windows

package engine

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	mock_splittun "github.com/mullvad/talpid-splittun/mock"
	"github.com/mullvad/talpid-splittun/routemon"
)

func TestSentinelTunnelV4_IsTestNet1(t *testing.T) {
	assert.Equal(t, "192.0.2.123", sentinelTunnelV4.String())
}

func TestAlreadySettingPathsError_Message(t *testing.T) {
	err := &AlreadySettingPathsError{}
	assert.Contains(t, err.Error(), "already in progress")
}

func TestEngine_SetPaths_RejectsOverlappingCalls(t *testing.T) {
	e := &Engine{}

	block := make(chan struct{})
	release := make(chan struct{})
	e.settingPaths.Store(false)

	// Simulate an in-flight call by grabbing the guard directly, the way
	// SetPaths's own goroutine would while serializer.SetPaths blocks.
	started := make(chan struct{})
	go func() {
		e.settingPaths.Store(true)
		close(started)
		<-block
		e.settingPaths.Store(false)
		close(release)
	}()
	<-started

	err := e.SetPaths(nil, nil)
	assert.Error(t, err)
	assert.IsType(t, &AlreadySettingPathsError{}, err)

	close(block)
	<-release
}

func TestEngine_EscalateBlock_NilHandlerIsNoop(t *testing.T) {
	e := &Engine{}
	assert.NotPanics(t, func() {
		e.escalateBlock(assert.AnError)
	})
}

func TestEngine_EscalateBlock_InvokesHandler(t *testing.T) {
	var mu sync.Mutex
	var got error

	e := &Engine{onBlock: func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = err
	}}

	e.escalateBlock(assert.AnError)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, assert.AnError, got)
}

func TestEngine_CurrentAddressesLocked_ReflectsStoredFields(t *testing.T) {
	e := &Engine{
		tunnelV4:   netip.MustParseAddr("192.0.2.123"),
		internetV4: netip.MustParseAddr("10.0.0.5"),
	}

	addrs := e.currentAddressesLocked()
	assert.Equal(t, e.tunnelV4, addrs.TunnelV4)
	assert.Equal(t, e.internetV4, addrs.InternetV4)
	assert.False(t, addrs.TunnelV6.IsValid())
	assert.False(t, addrs.InternetV6.IsValid())
}

func TestEngine_SetTunnelAddresses_RejectsInvalidIP(t *testing.T) {
	e := &Engine{}

	err := e.SetTunnelAddresses([]string{"not-an-ip"})

	var parseErr *IpParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "not-an-ip", parseErr.Input)
}

func TestNew_NilMonitorReturnsStartPathMonitorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock_splittun.NewMockClient(ctrl)

	eng, err := New(client, nil, nil)

	assert.Nil(t, eng)
	var monitorErr *StartPathMonitorError
	assert.ErrorAs(t, err, &monitorErr)
}

func TestEngine_OnRouteChange_UpdatesCorrectFamily(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	v4Addr := netip.MustParseAddr("10.0.0.7")
	v6Addr := netip.MustParseAddr("2001:db8::1")

	client := mock_splittun.NewMockClient(ctrl)
	client.EXPECT().RegisterIPs(netip.Addr{}, v4Addr, netip.Addr{}, v6Addr).Return(nil)

	s := NewSerializer(client, &fakeMonitor{})
	go s.Run()
	defer s.Close()

	e := &Engine{
		serializer: s,
		internetV6: v6Addr,
	}

	e.onRouteChange(routemon.FamilyV4)(routemon.Event{Family: routemon.FamilyV4, LocalAddr: v4Addr})

	e.mu.Lock()
	got := e.currentAddressesLocked()
	e.mu.Unlock()

	assert.Equal(t, v4Addr, got.InternetV4)
	assert.Equal(t, v6Addr, got.InternetV6)
}
