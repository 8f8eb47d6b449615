//go:build windows

package splittun

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/mullvad/talpid-splittun/process"
)

// requestTimeout bounds how long a single ioctl is allowed to stay pending
// before the caller gives up waiting on it.
const requestTimeout = 5 * time.Second

// deviceClient is the sole owner of the driver handle. It is not safe for
// concurrent use by more than one goroutine at a time beyond DequeueEvent,
// which is meant to run on its own reader goroutine while everything else
// runs on the request-serialiser goroutine (see package engine).
type deviceClient struct {
	mu sync.Mutex

	handle windows.Handle
	state  DriverState

	ioEvent windows.Handle
}

var _ Client = (*deviceClient)(nil)

// NewClient opens a handle to the split-tunnel device without yet driving
// it through any state transition. Call Open to bring the driver to Ready.
func NewClient() (Client, error) {
	path, err := windows.UTF16PtrFromString(driverSymbolicName)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		switch err {
		case windows.ERROR_FILE_NOT_FOUND:
			return nil, &ConnectionFailedError{}
		case windows.ERROR_ACCESS_DENIED:
			return nil, &ConnectionDeniedError{}
		default:
			return nil, &ConnectionError{Err: err}
		}
	}

	ioEvent, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, &ConnectionError{Err: err}
	}

	return &deviceClient{
		handle:  handle,
		state:   DriverStateStarted,
		ioEvent: ioEvent,
	}, nil
}

// Open queries the driver's actual state and drives it forward from
// wherever it is (Started -> Initialized -> Ready), requerying after each
// transition rather than assuming it landed where expected, and always
// leaves the configuration cleared regardless of where initialization
// stopped. It never returns successfully with the driver below Ready.
func (c *deviceClient) Open() error {
	defer func() {
		// The empty-paths law applies on startup too: a freshly (re-)opened
		// device never starts with a stale exclusion list.
		_ = c.ClearConfig()
	}()

	state, err := c.GetState()
	if err != nil {
		return &InitializationError{Err: err}
	}

	if state == DriverStateStarted {
		if err := c.initialize(); err != nil {
			return &InitializationError{Err: err}
		}
		if state, err = c.GetState(); err != nil {
			return &InitializationError{Err: err}
		}
	}

	if state == DriverStateInitialized {
		if err := c.registerProcesses(); err != nil {
			return &RegisterProcessesError{Err: err}
		}
		if state, err = c.GetState(); err != nil {
			return &RegisterProcessesError{Err: err}
		}
	}

	if state < DriverStateReady {
		return &InitializationError{Err: fmt.Errorf("driver did not reach Ready, observed state %s", state)}
	}

	c.state = state
	return nil
}

func (c *deviceClient) initialize() error {
	_, err := c.control(ioctlInitialize, nil, 0)
	return err
}

func (c *deviceClient) registerProcesses() error {
	tree, err := process.BuildTree()
	if err != nil {
		return err
	}

	inputs := make([]processRegistryInput, 0, len(tree))
	for _, p := range tree {
		inputs = append(inputs, processRegistryInput{
			PID:        p.PID,
			ParentPID:  p.ParentPID,
			DevicePath: p.DevicePath,
		})
	}

	buf := encodeProcessRegistry(inputs)
	_, err = c.control(ioctlRegisterProcesses, buf, 0)
	return err
}

// Close releases the device handle and the I/O event. It does not attempt
// to drive the driver through ClearConfiguration; callers that want that
// guarantee call ClearConfig explicitly before Close.
func (c *deviceClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != windows.InvalidHandle && c.handle != 0 {
		windows.CloseHandle(c.handle)
		c.handle = windows.InvalidHandle
	}
	if c.ioEvent != 0 {
		windows.CloseHandle(c.ioEvent)
		c.ioEvent = 0
	}
	return nil
}

func (c *deviceClient) RegisterIPs(tunnelV4, internetV4, tunnelV6, internetV6 netip.Addr) error {
	buf := encodeInterfaceAddresses(tunnelV4, internetV4, tunnelV6, internetV6)
	_, err := c.control(ioctlRegisterIPAddresses, buf, 0)
	if err != nil {
		return &RegisterIpsError{Err: err}
	}
	return nil
}

func (c *deviceClient) SetConfig(devicePaths []string) error {
	if len(devicePaths) == 0 {
		// Callers are expected to route this through ClearConfig; falling
		// back to it here keeps the driver from ever seeing a zero-entry
		// SetConfiguration, which the empty-paths law reserves for
		// ClearConfiguration.
		return c.ClearConfig()
	}
	buf := encodeExclusionConfig(devicePaths)
	_, err := c.control(ioctlSetConfiguration, buf, 0)
	if err != nil {
		return &SetConfigurationError{Err: err}
	}
	return nil
}

func (c *deviceClient) ClearConfig() error {
	_, err := c.control(ioctlClearConfiguration, nil, 0)
	if err != nil {
		return &ClearConfigError{Err: err}
	}
	return nil
}

func (c *deviceClient) GetState() (DriverState, error) {
	out, err := c.control(ioctlGetState, nil, 8)
	if err != nil {
		return 0, &GetStateError{Err: err}
	}
	if len(out) < 8 {
		return 0, &GetStateError{Err: fmt.Errorf("GetState returned %d bytes, want 8", len(out))}
	}
	raw := binary.LittleEndian.Uint64(out[:8])
	state, err := parseDriverState(raw)
	if err != nil {
		return 0, &GetStateError{Err: err}
	}
	return state, nil
}

// DequeueEvent blocks on the dedicated overlapped slot until either an
// event arrives or quit fires. It is meant to be called in a loop from a
// single dedicated goroutine; see reader.go.
func (c *deviceClient) DequeueEvent(quit Waitable) (*DriverEvent, error) {
	out := make([]byte, 4096)

	// The reader's completion event is its own, never c.ioEvent: control()
	// waits on that auto-reset event from the serialiser goroutine.
	ioEvent, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(ioEvent)

	overlapped := &windows.Overlapped{HEvent: ioEvent}

	var bytesReturned uint32
	err = windows.DeviceIoControl(c.handle, ioctlDequeueEvent, nil, 0, &out[0], uint32(len(out)), &bytesReturned, overlapped)
	if err == nil {
		return nil, &UnexpectedCompletionError{}
	}
	if err != windows.ERROR_IO_PENDING {
		return nil, err
	}

	handles := []windows.Handle{ioEvent}
	if quit != nil {
		handles = append(handles, windows.Handle(quit.Handle()))
	}

	idx, err := waitForAny(handles, windows.INFINITE)
	if err != nil {
		return nil, err
	}
	if idx != 0 {
		// Quit fired before the completion did. The pending ioctl is left
		// to complete (or get cancelled on handle close); the caller is
		// shutting down and does not need its result.
		return nil, nil
	}

	if err := windows.GetOverlappedResult(c.handle, overlapped, &bytesReturned, true); err != nil {
		return nil, err
	}

	ev, err := decodeEvent(out[:bytesReturned])
	if err != nil {
		return nil, &DecodeEventError{Err: err}
	}
	return ev, nil
}

// control issues one synchronous-from-the-caller's-perspective ioctl over
// the shared overlapped slot: queue it, require ERROR_IO_PENDING (a
// driver that completes synchronously is violating its async contract),
// and wait up to requestTimeout for completion.
func (c *deviceClient) control(code uint32, in []byte, outLen int) ([]byte, error) {
	var inPtr *byte
	var inLen uint32
	if len(in) > 0 {
		inPtr = &in[0]
		inLen = uint32(len(in))
	}

	out := make([]byte, outLen)
	var outPtr *byte
	if outLen > 0 {
		outPtr = &out[0]
	}

	overlapped := &windows.Overlapped{HEvent: c.ioEvent}

	var bytesReturned uint32
	err := windows.DeviceIoControl(c.handle, code, inPtr, inLen, outPtr, uint32(outLen), &bytesReturned, overlapped)
	if err == nil {
		return nil, &UnexpectedCompletionError{}
	}
	if err != windows.ERROR_IO_PENDING {
		return nil, err
	}

	idx, err := waitForAny([]windows.Handle{c.ioEvent}, uint32(requestTimeout/time.Millisecond))
	if err != nil {
		return nil, err
	}
	if idx != 0 {
		return nil, fmt.Errorf("ioctl 0x%x timed out after %s", code, requestTimeout)
	}

	if err := windows.GetOverlappedResult(c.handle, overlapped, &bytesReturned, true); err != nil {
		return nil, err
	}

	return out[:bytesReturned], nil
}

// waitForAny wraps WaitForMultipleObjects, returning the index of the
// handle that became signaled. A timeout is reported as a (len(handles), nil)
// index equal to len(handles), distinguishable from any real handle index.
func waitForAny(handles []windows.Handle, timeoutMs uint32) (int, error) {
	event, err := windows.WaitForMultipleObjects(handles, false, timeoutMs)
	if err != nil {
		return 0, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return len(handles), nil
	}
	idx := int(event - windows.WAIT_OBJECT_0)
	if idx < 0 || idx >= len(handles) {
		return 0, fmt.Errorf("unexpected wait result: 0x%x", event)
	}
	return idx, nil
}
