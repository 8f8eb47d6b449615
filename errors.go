//go:build windows

package splittun

import "fmt"

// ConnectionFailedError means the driver device object does not exist,
// i.e. the driver is probably not loaded.
type ConnectionFailedError struct{}

func (e *ConnectionFailedError) Error() string {
	return "failed to connect to driver: no such device, the driver is probably not loaded"
}

// ConnectionDeniedError means another client already holds the exclusive
// device handle.
type ConnectionDeniedError struct{}

func (e *ConnectionDeniedError) Error() string {
	return "failed to connect to driver: connection denied, the exclusive handle is probably held by another client"
}

// ConnectionError wraps any other failure to open the device.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("failed to connect to driver: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// GetStateError wraps a failure to query the driver's state.
type GetStateError struct{ Err error }

func (e *GetStateError) Error() string { return fmt.Sprintf("failed to query driver state: %v", e.Err) }
func (e *GetStateError) Unwrap() error { return e.Err }

// InitializationError wraps a failure of the Initialize ioctl.
type InitializationError struct{ Err error }

func (e *InitializationError) Error() string { return fmt.Sprintf("failed to initialize driver: %v", e.Err) }
func (e *InitializationError) Unwrap() error { return e.Err }

// RegisterProcessesError wraps a failure to register the process tree.
type RegisterProcessesError struct{ Err error }

func (e *RegisterProcessesError) Error() string {
	return fmt.Sprintf("failed to register process tree: %v", e.Err)
}
func (e *RegisterProcessesError) Unwrap() error { return e.Err }

// ClearConfigError wraps a failure of the ClearConfiguration ioctl.
type ClearConfigError struct{ Err error }

func (e *ClearConfigError) Error() string {
	return fmt.Sprintf("failed to clear exclusion configuration: %v", e.Err)
}
func (e *ClearConfigError) Unwrap() error { return e.Err }

// SetConfigurationError wraps a failure of the SetConfiguration ioctl.
type SetConfigurationError struct{ Err error }

func (e *SetConfigurationError) Error() string {
	return fmt.Sprintf("failed to set exclusion configuration: %v", e.Err)
}
func (e *SetConfigurationError) Unwrap() error { return e.Err }

// RegisterIpsError wraps a failure of the RegisterIpAddresses ioctl.
type RegisterIpsError struct{ Err error }

func (e *RegisterIpsError) Error() string { return fmt.Sprintf("failed to register IP addresses: %v", e.Err) }
func (e *RegisterIpsError) Unwrap() error { return e.Err }

// EventThreadError wraps a failure to set up the driver event loop.
type EventThreadError struct{ Err error }

func (e *EventThreadError) Error() string { return fmt.Sprintf("failed to set up event thread: %v", e.Err) }
func (e *EventThreadError) Unwrap() error { return e.Err }

// UnexpectedCompletionError is returned when DeviceIoControl completed
// synchronously instead of returning ERROR_IO_PENDING; the driver contract
// is strictly asynchronous, so this indicates a protocol violation.
type UnexpectedCompletionError struct{}

func (e *UnexpectedCompletionError) Error() string {
	return "expected pending operation, but ioctl completed synchronously"
}
