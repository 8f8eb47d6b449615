//go:build windows

package engine

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	mock_splittun "github.com/mullvad/talpid-splittun/mock"
)

type fakeMonitor struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeMonitor) SetPaths(paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	return f.err
}

func TestSerializer_EmptyPathsClearsConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock_splittun.NewMockClient(ctrl)
	client.EXPECT().ClearConfig().Return(nil)

	monitor := &fakeMonitor{}
	s := NewSerializer(client, monitor)
	go s.Run()
	defer s.Close()

	assert.NoError(t, s.SetPaths(nil))
	assert.Equal(t, [][]string{nil}, monitor.calls)
}

func TestSerializer_NonEmptyPathsSetsConfigAndPropagatesToMonitor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paths := []string{`\Device\HarddiskVolume3\app.exe`}

	client := mock_splittun.NewMockClient(ctrl)
	client.EXPECT().SetConfig(paths).Return(nil)

	monitor := &fakeMonitor{}
	s := NewSerializer(client, monitor)
	go s.Run()
	defer s.Close()

	assert.NoError(t, s.SetPaths(paths))
	assert.Equal(t, [][]string{paths}, monitor.calls)
}

func TestSerializer_MonitorFailureClearsMonitoredListButStillSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paths := []string{`\Device\HarddiskVolume3\app.exe`}

	client := mock_splittun.NewMockClient(ctrl)
	client.EXPECT().SetConfig(paths).Return(nil)

	monitor := &fakeMonitor{err: assert.AnError}
	s := NewSerializer(client, monitor)
	go s.Run()
	defer s.Close()

	err := s.SetPaths(paths)
	assert.NoError(t, err)
	assert.Equal(t, [][]string{paths, nil}, monitor.calls)
}

func TestSerializer_RegisterIPs_DedupsIdenticalSnapshots(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	addrs := InterfaceAddresses{InternetV4: netip.MustParseAddr("192.168.1.10")}

	client := mock_splittun.NewMockClient(ctrl)
	client.EXPECT().RegisterIPs(addrs.TunnelV4, addrs.InternetV4, addrs.TunnelV6, addrs.InternetV6).Return(nil).Times(1)

	monitor := &fakeMonitor{}
	s := NewSerializer(client, monitor)
	go s.Run()
	defer s.Close()

	assert.NoError(t, s.RegisterIPs(addrs))
	assert.NoError(t, s.RegisterIPs(addrs))
}

func TestSerializer_RegisterIPs_EnforcesNoTunnelWithoutInternet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tunnelV4 := netip.MustParseAddr("192.0.2.123")
	internetV4 := netip.MustParseAddr("192.168.1.10")

	client := mock_splittun.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().RegisterIPs(tunnelV4, internetV4, netip.Addr{}, netip.Addr{}).Return(nil),
		client.EXPECT().RegisterIPs(netip.Addr{}, netip.Addr{}, netip.Addr{}, netip.Addr{}).Return(nil),
	)

	monitor := &fakeMonitor{}
	s := NewSerializer(client, monitor)
	go s.Run()
	defer s.Close()

	// A fresh serializer's previous snapshot is already all-zero, so the
	// default route is registered first; otherwise the stripped request
	// below would be deduplicated and never reach the driver.
	assert.NoError(t, s.RegisterIPs(InterfaceAddresses{TunnelV4: tunnelV4, InternetV4: internetV4}))
	assert.NoError(t, s.RegisterIPs(InterfaceAddresses{TunnelV4: tunnelV4}))
}
