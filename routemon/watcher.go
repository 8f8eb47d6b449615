//go:build windows

// Package routemon watches for default-route changes on both IP families
// and resolves the watching interface's local address, so the engine can
// keep the driver's registered "internet" addresses in sync with the
// system's actual routing state.
package routemon

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modIphlpapi = windows.NewLazySystemDLL("iphlpapi.dll")

	procNotifyRouteChange2          = modIphlpapi.NewProc("NotifyRouteChange2")
	procCancelMibChangeNotify2      = modIphlpapi.NewProc("CancelMibChangeNotify2")
	procConvertInterfaceLuidToIndex = modIphlpapi.NewProc("ConvertInterfaceLuidToIndex")
	procGetBestRoute2               = modIphlpapi.NewProc("GetBestRoute2")
)

const (
	// sockaddrInetSize is sizeof(SOCKADDR_INET): a union of SOCKADDR_IN and
	// SOCKADDR_IN6, the latter being the larger at family(2)+port(2)+
	// flowinfo(4)+addr(16)+scope_id(4).
	sockaddrInetSize = 28

	// bestRouteRowBufSize is deliberately much larger than the prefix
	// mibIpforwardRow2 declares: GetBestRoute2 writes a full
	// MIB_IPFORWARD_ROW2 into this buffer (unlike NotifyRouteChange2's
	// callback, where the OS owns the memory behind the pointer we read),
	// so the buffer we hand it must be big enough for the real struct, not
	// just the prefix we care about.
	bestRouteRowBufSize = 512
)

// Family identifies which IP family a route event or watcher concerns.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) winAddressFamily() uint16 {
	if f == FamilyV6 {
		return windows.AF_INET6
	}
	return windows.AF_INET
}

// ChangeType mirrors MIB_NOTIFICATION_TYPE as reported for route rows.
type ChangeType int

const (
	ChangeAdded ChangeType = iota
	ChangeUpdatedDetails
	ChangeRemoved
)

// Event is handed to the registered callback on every route change.
type Event struct {
	Type   ChangeType
	Family Family
	// LocalAddr is the watching interface's local address of Family, or
	// the zero value if none could be resolved (e.g. interface still
	// coming up). Absence here is not an error: the caller simply clears
	// the corresponding field.
	LocalAddr netip.Addr
}

// Callback is invoked synchronously on the OS notification thread. It must
// not block for long: per spec it updates the stored address and enqueues
// exactly one RegisterIps request before returning.
type Callback func(Event)

// LuidToIpError means interface LUID to local-address resolution failed.
type LuidToIpError struct {
	Luid uint64
	Err  error
}

func (e *LuidToIpError) Error() string {
	return fmt.Sprintf("failed to resolve local address for interface luid %d: %v", e.Luid, e.Err)
}
func (e *LuidToIpError) Unwrap() error { return e.Err }

// RegisterRouteChangeCallbackError wraps a failure to register with
// NotifyRouteChange2.
type RegisterRouteChangeCallbackError struct {
	Family Family
	Err    error
}

func (e *RegisterRouteChangeCallbackError) Error() string {
	return fmt.Sprintf("failed to register route change callback for family %v: %v", e.Family, e.Err)
}
func (e *RegisterRouteChangeCallbackError) Unwrap() error { return e.Err }

// mibIpforwardRow2 mirrors the prefix of MIB_IPFORWARD_ROW2 that this
// package actually reads: the owning interface LUID. The real struct is
// considerably larger; callers must never read past this prefix.
type mibIpforwardRow2 struct {
	InterfaceLuid   uint64
	InterfaceIndex  uint32
	_               [4]byte // padding to keep the next field's alignment if ever added
}

// Watcher owns zero or more live NotifyRouteChange2 registrations, one per
// family, and drops them all on Close.
type Watcher struct {
	mu      sync.Mutex
	handles map[Family]windows.Handle
	// keepCallback pins a syscall.NewCallback-created function pointer.
	// Letting it get garbage collected while the OS still holds the
	// trampoline address would be fatal, so one survives per registration.
	keepCallback map[Family]uintptr
}

// NewWatcher constructs an empty Watcher. Register installs the callback
// for one family; constructing a fresh Watcher and dropping the old one is
// the normal way to replace both registrations at once (see spec's
// set_tunnel_addresses, which always drops the old context's callbacks
// before installing new ones).
func NewWatcher() *Watcher {
	return &Watcher{
		handles:      make(map[Family]windows.Handle),
		keepCallback: make(map[Family]uintptr),
	}
}

// Register installs cb for the given family, replacing any existing
// registration for that family.
func (w *Watcher) Register(family Family, cb Callback) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.unregisterLocked(family)

	trampoline := func(callerContext uintptr, row *mibIpforwardRow2, notificationType uint32) uintptr {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("routemon: callback panic: %v", r)
			}
		}()

		addr, err := luidToIP(row.InterfaceLuid, family)
		if err != nil {
			log.Printf("routemon: %v", err)
		}

		cb(Event{
			Type:      convertChangeType(notificationType),
			Family:    family,
			LocalAddr: addr,
		})
		return 0
	}

	callback := syscall.NewCallback(trampoline)

	var handle windows.Handle
	ret, _, callErr := procNotifyRouteChange2.Call(
		uintptr(family.winAddressFamily()),
		callback,
		0,
		0, // bInitialNotification = FALSE
		uintptr(unsafe.Pointer(&handle)),
	)
	if ret != 0 {
		return &RegisterRouteChangeCallbackError{Family: family, Err: callErr}
	}

	w.handles[family] = handle
	w.keepCallback[family] = callback
	return nil
}

func (w *Watcher) unregisterLocked(family Family) {
	if handle, ok := w.handles[family]; ok {
		procCancelMibChangeNotify2.Call(uintptr(handle))
		delete(w.handles, family)
		delete(w.keepCallback, family)
	}
}

// Close drops every registered callback.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for family := range w.handles {
		w.unregisterLocked(family)
	}
}

func convertChangeType(raw uint32) ChangeType {
	switch raw {
	case 1: // MibAddInstance
		return ChangeAdded
	case 2: // MibDeleteInstance
		return ChangeRemoved
	default: // MibParameterNotification, MibInitialNotification
		return ChangeUpdatedDetails
	}
}

// luidToIP resolves an interface LUID to one of its local addresses of the
// requested family. An interface with no address of that family yet (still
// coming up) returns the zero netip.Addr and no error: this is not fatal
// per spec, the caller just clears the corresponding field.
func luidToIP(luid uint64, family Family) (netip.Addr, error) {
	var index uint32
	ret, _, callErr := procConvertInterfaceLuidToIndex.Call(
		uintptr(unsafe.Pointer(&luid)),
		uintptr(unsafe.Pointer(&index)),
	)
	if ret != 0 {
		return netip.Addr{}, &LuidToIpError{Luid: luid, Err: callErr}
	}

	iface, err := net.InterfaceByIndex(int(index))
	if err != nil {
		return netip.Addr{}, &LuidToIpError{Luid: luid, Err: err}
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, &LuidToIpError{Luid: luid, Err: err}
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if family == FamilyV4 && addr.Is4() {
			return addr, nil
		}
		if family == FamilyV6 && addr.Is6() && !addr.Is4In6() {
			return addr, nil
		}
	}

	return netip.Addr{}, nil
}

// BestDefaultRoute performs a one-shot probe of the system's current best
// default route for family and resolves the local address of the
// interface that owns it, the same way a live route-change callback
// would. It is meant to seed the initial internet address when a tunnel
// first comes up, before any callback has fired.
//
// A family with no default route at all (e.g. no IPv6 connectivity) is
// not an error: BestDefaultRoute returns the zero netip.Addr and a nil
// error, matching the route-change callback's own "absence is not fatal"
// contract.
func BestDefaultRoute(family Family) (netip.Addr, error) {
	dest := encodeUnspecifiedSockaddrInet(family)

	routeBuf := make([]byte, bestRouteRowBufSize)
	bestSrc := make([]byte, sockaddrInetSize)

	ret, _, callErr := procGetBestRoute2.Call(
		0, // InterfaceLuid: let the system pick
		0, // InterfaceIndex: unspecified
		0, // SourceAddress: unspecified
		uintptr(unsafe.Pointer(&dest[0])),
		0, // AddressSortOptions
		uintptr(unsafe.Pointer(&routeBuf[0])),
		uintptr(unsafe.Pointer(&bestSrc[0])),
	)
	if ret != 0 {
		if ret == uintptr(windows.ERROR_NOT_FOUND) {
			return netip.Addr{}, nil
		}
		return netip.Addr{}, fmt.Errorf("GetBestRoute2 failed for family %v: %w", family, callErr)
	}

	row := (*mibIpforwardRow2)(unsafe.Pointer(&routeBuf[0]))
	return luidToIP(row.InterfaceLuid, family)
}

// encodeUnspecifiedSockaddrInet builds a SOCKADDR_INET for family's
// unspecified address (0.0.0.0 or ::), which is how GetBestRoute2 is asked
// for "the" default route rather than the route to some specific host.
func encodeUnspecifiedSockaddrInet(family Family) []byte {
	buf := make([]byte, sockaddrInetSize)
	binary.LittleEndian.PutUint16(buf[0:2], family.winAddressFamily())
	return buf
}
