//go:build windows

//go:generate mockgen -source=client_interface.go -destination=mock/client.go -package=mock_splittun

package splittun

import "net/netip"

// Client is the device-control surface the rest of the package talks to.
// The concrete implementation owns the driver handle exclusively; there is
// never more than one Client alive for a given device at a time.
type Client interface {
	// Open drives the device through its startup sequence (Started ->
	// Initialize -> RegisterProcesses -> Ready) and leaves the
	// configuration cleared. Calling Open again once the driver is Ready
	// skips both transitions and only clears the configuration again.
	Open() error

	// Close releases the device handle. It does not attempt to drive the
	// driver back through any state transition; callers that want a clean
	// shutdown should clear the configuration themselves first.
	Close() error

	// RegisterIPs pushes the current tunnel and internet-routable
	// addresses to the driver. An invalid (zero-value) netip.Addr in any
	// slot means that address is not currently available.
	RegisterIPs(tunnelV4, internetV4, tunnelV6, internetV6 netip.Addr) error

	// SetConfig pushes a non-empty set of excluded application device
	// paths. Callers must route an empty set through ClearConfig instead.
	SetConfig(devicePaths []string) error

	// ClearConfig resets the driver to having no excluded applications.
	ClearConfig() error

	// GetState reads the driver's current state.
	GetState() (DriverState, error)

	// DequeueEvent blocks until one event is available from the driver, or
	// the provided quit event fires, whichever comes first. A nil *DriverEvent
	// with a nil error means the quit event fired.
	DequeueEvent(quit Waitable) (*DriverEvent, error)
}

// Waitable abstracts a Win32 waitable handle so the event-reader loop can be
// tested without a real driver or a real quit event.
type Waitable interface {
	Handle() uintptr
}
