//go:build windows

// Package engine owns the device client and reconciles it against the
// current default route, tunnel addresses, and excluded application paths,
// serialising every driver-modifying ioctl through a single goroutine.
package engine

import (
	"fmt"
	"log"
	"net/netip"
	"time"

	splittun "github.com/mullvad/talpid-splittun"
)

// requestTimeout bounds every request/reply round trip through the
// serialiser, matching the driver ioctl timeout.
const requestTimeout = 5 * time.Second

// RequestThreadStuckError means a request or its reply did not complete
// within requestTimeout.
type RequestThreadStuckError struct{}

func (e *RequestThreadStuckError) Error() string {
	return fmt.Sprintf("request serialiser did not respond within %s", requestTimeout)
}

// RequestThreadDownError means the serialiser goroutine has exited; no
// further requests can be served.
type RequestThreadDownError struct{}

func (e *RequestThreadDownError) Error() string {
	return "request serialiser has shut down"
}

// pathMonitor is the subset of pathmon.Monitor the serialiser depends on.
type pathMonitor interface {
	SetPaths(paths []string) error
}

// InterfaceAddresses is the set of addresses registered with the driver: a
// tunnel endpoint and the internet-routable address actually carrying that
// tunnel's traffic, for each IP family.
type InterfaceAddresses struct {
	TunnelV4   netip.Addr
	InternetV4 netip.Addr
	TunnelV6   netip.Addr
	InternetV6 netip.Addr
}

// enforceNoTunnelWithoutInternet clears both tunnel addresses whenever
// neither internet address is present: with no default route there is
// nothing to redirect traffic through, so advertising a tunnel endpoint
// would be misleading to the driver.
func (a InterfaceAddresses) enforceNoTunnelWithoutInternet() InterfaceAddresses {
	if !a.InternetV4.IsValid() && !a.InternetV6.IsValid() {
		a.TunnelV4 = netip.Addr{}
		a.TunnelV6 = netip.Addr{}
	}
	return a
}

type requestKind int

const (
	kindSetPaths requestKind = iota
	kindRegisterIPs
)

type request struct {
	kind  requestKind
	paths []string
	addrs InterfaceAddresses
	reply chan error
}

// Serializer is the single owner of the device client: every ioctl that
// mutates driver state goes through its Run loop, one at a time, in the
// order requests were sent.
type Serializer struct {
	client  splittun.Client
	monitor pathMonitor

	requests chan request
	done     chan struct{}

	// previous is read and written only inside Run, so it needs no lock.
	previous InterfaceAddresses
}

// NewSerializer constructs a Serializer. Call Run on its own goroutine
// before issuing any request.
func NewSerializer(client splittun.Client, monitor pathMonitor) *Serializer {
	return &Serializer{
		client:   client,
		monitor:  monitor,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// Run processes requests until Close is called, then tears down the path
// monitor (handing it an empty path list, which drops all of its watches)
// and exits.
func (s *Serializer) Run() {
	for req := range s.requests {
		req.reply <- s.handle(req)
	}
	if s.monitor != nil {
		_ = s.monitor.SetPaths(nil)
	}
	close(s.done)
}

// Close stops Run by closing the request channel. Any request already
// in flight completes first; Run exits once the channel drains.
func (s *Serializer) Close() {
	close(s.requests)
}

func (s *Serializer) handle(req request) error {
	switch req.kind {
	case kindSetPaths:
		return s.handleSetPaths(req.paths)
	case kindRegisterIPs:
		return s.handleRegisterIPs(req.addrs)
	default:
		return fmt.Errorf("unknown request kind %d", req.kind)
	}
}

func (s *Serializer) handleSetPaths(paths []string) error {
	var err error
	if len(paths) == 0 {
		err = s.client.ClearConfig()
	} else {
		err = s.client.SetConfig(paths)
	}
	if err != nil {
		return err
	}

	if monitorErr := s.monitor.SetPaths(paths); monitorErr != nil {
		log.Printf("engine: path monitor failed to pick up new paths, clearing monitored list: %v", monitorErr)
		_ = s.monitor.SetPaths(nil)
	}
	return nil
}

func (s *Serializer) handleRegisterIPs(addrs InterfaceAddresses) error {
	addrs = addrs.enforceNoTunnelWithoutInternet()
	if addrs == s.previous {
		return nil
	}

	if err := s.client.RegisterIPs(addrs.TunnelV4, addrs.InternetV4, addrs.TunnelV6, addrs.InternetV6); err != nil {
		return err
	}
	s.previous = addrs
	return nil
}

// SetPaths sends a SetPaths request and blocks for its reply.
func (s *Serializer) SetPaths(paths []string) error {
	return s.send(request{kind: kindSetPaths, paths: paths})
}

// RegisterIPs sends a RegisterIps request and blocks for its reply.
func (s *Serializer) RegisterIPs(addrs InterfaceAddresses) error {
	return s.send(request{kind: kindRegisterIPs, addrs: addrs})
}

func (s *Serializer) send(req request) error {
	req.reply = make(chan error, 1)

	select {
	case s.requests <- req:
	case <-s.done:
		return &RequestThreadDownError{}
	case <-time.After(requestTimeout):
		return &RequestThreadStuckError{}
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return &RequestThreadDownError{}
	case <-time.After(requestTimeout):
		return &RequestThreadStuckError{}
	}
}
