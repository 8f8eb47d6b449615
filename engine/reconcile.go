//go:build windows

package engine

import (
	"fmt"
	"log"
	"net/netip"
	"sync"
	"sync/atomic"

	splittun "github.com/mullvad/talpid-splittun"
	"github.com/mullvad/talpid-splittun/routemon"
)

// sentinelTunnelV4 stands in for an absent tunnel IPv4 address when a
// tunnel is up but advertised none: the driver needs some v4 address to
// redirect split traffic away from, and this RFC 5737 TEST-NET-1 address
// is guaranteed non-routable.
var sentinelTunnelV4 = netip.MustParseAddr("192.0.2.123")

// AlreadySettingPathsError is returned by SetPaths when a previous
// asynchronous SetPaths call is still in flight.
type AlreadySettingPathsError struct{}

func (e *AlreadySettingPathsError) Error() string {
	return "a SetPaths call is already in progress"
}

// BlockHandler is invoked when the route-change callback fails in a way
// that leaves the driver's registered addresses potentially stale: the
// engine cannot safely keep routing split traffic, so it asks the caller
// to block all non-split traffic until the situation resolves. A nil
// handler simply drops the escalation, matching the weak-reference,
// drop-if-gone semantics of the original daemon hook.
type BlockHandler func(error)

// Engine is the reconciliation engine's public surface: the thing callers
// construct once per VPN connection attempt and drive through its
// lifecycle.
type Engine struct {
	client     splittun.Client
	serializer *Serializer
	onBlock    BlockHandler

	quitEvent    *splittun.QuitEvent
	readerDone   chan struct{}
	settingPaths atomic.Bool

	mu         sync.Mutex
	watcher    *routemon.Watcher
	tunnelV4   netip.Addr
	tunnelV6   netip.Addr
	internetV4 netip.Addr
	internetV6 netip.Addr
}

// New opens the device client, drives it to Ready, and starts the request
// serialiser and event reader. monitor is the path monitor the serialiser
// will push new exclusion paths to on every successful SetPaths.
func New(client splittun.Client, monitor pathMonitor, onBlock BlockHandler) (*Engine, error) {
	if monitor == nil {
		return nil, &StartPathMonitorError{Err: fmt.Errorf("path monitor is nil")}
	}

	if err := client.Open(); err != nil {
		return nil, err
	}

	quitEvent, err := splittun.NewQuitEvent()
	if err != nil {
		return nil, &splittun.EventThreadError{Err: err}
	}

	e := &Engine{
		client:     client,
		serializer: NewSerializer(client, monitor),
		onBlock:    onBlock,
		quitEvent:  quitEvent,
		readerDone: make(chan struct{}),
	}

	go e.serializer.Run()

	go func() {
		defer close(e.readerDone)
		if err := splittun.RunEventReader(client, quitEvent, e.handleDriverEvent); err != nil {
			log.Printf("engine: event reader exited: %v", err)
		}
	}()

	return e, nil
}

func (e *Engine) handleDriverEvent(ev *splittun.DriverEvent) {
	switch {
	case ev.Splitting != nil:
		log.Printf("engine: process %d split (%s): %s", ev.Splitting.PID, ev.Splitting.Reason, ev.Splitting.Image)
	case ev.SplittingError != nil:
		log.Printf("engine: failed to split process %d: %s", ev.SplittingError.PID, ev.SplittingError.Image)
	case ev.ErrorMessage != nil:
		log.Printf("engine: driver error (status=%d): %s", ev.ErrorMessage.Status, ev.ErrorMessage.Message)
	}
}

// SetPathsSync pushes a new exclusion path set and blocks until the driver
// has acknowledged it (or REQUEST_TIMEOUT elapses).
func (e *Engine) SetPathsSync(paths []string) error {
	return e.serializer.SetPaths(paths)
}

// SetPaths pushes a new exclusion path set asynchronously, delivering the
// result on reply if non-nil. Overlapping calls are rejected with
// AlreadySettingPathsError rather than queued, since queuing stale path
// sets behind a slow one would mean applying configuration the caller no
// longer wants.
func (e *Engine) SetPaths(paths []string, reply chan<- error) error {
	if !e.settingPaths.CompareAndSwap(false, true) {
		return &AlreadySettingPathsError{}
	}

	go func() {
		defer e.settingPaths.Store(false)
		err := e.serializer.SetPaths(paths)
		if reply != nil {
			reply <- err
		}
	}()

	return nil
}

// SetTunnelAddresses installs a fresh route-change watcher for a newly
// established tunnel. metadataIPs are the tunnel's own advertised
// addresses, as carried in the connection metadata (hence strings rather
// than parsed netip.Addr); the first IPv4 and first IPv6 found are used,
// substituting the sentinel address for a missing IPv4. Any previously
// registered watcher is torn down first, so the driver never briefly
// observes two live callbacks for the same family. Both internet
// addresses are seeded by a one-shot best-default-route probe before the
// initial RegisterIps, rather than left absent until the first route
// callback fires — otherwise enforceNoTunnelWithoutInternet would force
// the very first registration to be all-zero even though a route already
// exists.
func (e *Engine) SetTunnelAddresses(metadataIPs []string) error {
	var tunnelV4, tunnelV6 netip.Addr
	for _, s := range metadataIPs {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return &IpParseError{Input: s, Err: err}
		}
		if ip.Is4() && !tunnelV4.IsValid() {
			tunnelV4 = ip
		}
		if ip.Is6() && !ip.Is4In6() && !tunnelV6.IsValid() {
			tunnelV6 = ip
		}
	}
	if !tunnelV4.IsValid() {
		tunnelV4 = sentinelTunnelV4
	}

	e.mu.Lock()
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	e.tunnelV4, e.tunnelV6 = tunnelV4, tunnelV6
	e.internetV4, e.internetV6 = netip.Addr{}, netip.Addr{}
	e.mu.Unlock()

	watcher := routemon.NewWatcher()

	if err := watcher.Register(routemon.FamilyV4, e.onRouteChange(routemon.FamilyV4)); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Register(routemon.FamilyV6, e.onRouteChange(routemon.FamilyV6)); err != nil {
		watcher.Close()
		return err
	}

	internetV4, err := routemon.BestDefaultRoute(routemon.FamilyV4)
	if err != nil {
		watcher.Close()
		return &ObtainDefaultRouteError{Family: routemon.FamilyV4, Err: err}
	}
	internetV6, err := routemon.BestDefaultRoute(routemon.FamilyV6)
	if err != nil {
		watcher.Close()
		return &ObtainDefaultRouteError{Family: routemon.FamilyV6, Err: err}
	}

	e.mu.Lock()
	e.watcher = watcher
	e.internetV4, e.internetV6 = internetV4, internetV6
	addrs := e.currentAddressesLocked()
	e.mu.Unlock()

	return e.serializer.RegisterIPs(addrs)
}

// ClearTunnelAddresses drops the route-change watcher and registers the
// zero-value address set, leaving the driver with no tunnel to redirect
// traffic towards.
func (e *Engine) ClearTunnelAddresses() error {
	e.mu.Lock()
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	e.tunnelV4, e.tunnelV6 = netip.Addr{}, netip.Addr{}
	e.internetV4, e.internetV6 = netip.Addr{}, netip.Addr{}
	e.mu.Unlock()

	if err := e.serializer.RegisterIPs(InterfaceAddresses{}); err != nil {
		return &ClearIpsError{Err: err}
	}
	return nil
}

func (e *Engine) onRouteChange(family routemon.Family) routemon.Callback {
	return func(ev routemon.Event) {
		e.mu.Lock()
		if family == routemon.FamilyV4 {
			e.internetV4 = ev.LocalAddr
		} else {
			e.internetV6 = ev.LocalAddr
		}
		addrs := e.currentAddressesLocked()
		e.mu.Unlock()

		if err := e.serializer.RegisterIPs(addrs); err != nil {
			routemon.DumpRoutes()
			e.escalateBlock(fmt.Errorf("failed to register IPs after route change: %w", err))
		}
	}
}

// currentAddressesLocked must be called with e.mu held.
func (e *Engine) currentAddressesLocked() InterfaceAddresses {
	return InterfaceAddresses{
		TunnelV4:   e.tunnelV4,
		InternetV4: e.internetV4,
		TunnelV6:   e.tunnelV6,
		InternetV6: e.internetV6,
	}
}

func (e *Engine) escalateBlock(err error) {
	if e.onBlock == nil {
		return
	}
	e.onBlock(err)
}

// Close signals the event reader to stop (without waiting for it — it may
// be blocked in a wait the driver never unblocks), then best-effort clears
// the exclusion configuration so the driver is left in a known-empty
// state, and finally stops the request serialiser.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	e.mu.Unlock()

	_ = e.quitEvent.Signal()

	if err := e.SetPathsSync(nil); err != nil {
		log.Printf("engine: best-effort clear on close failed: %v", err)
	}

	e.serializer.Close()
	return e.client.Close()
}
