//go:build windows

package splittun

// Device symbolic name the split-tunnel driver exposes.
const driverSymbolicName = `\\.\MULLVADSPLITTUNNEL`

// Control-code construction, mirroring CTL_CODE from winioctl.h:
//
//	(DeviceType << 16) | (Access << 14) | (Function << 2) | Method
const (
	stDeviceType = 0x8000

	methodBuffered = 0
	methodNeither  = 3

	fileAnyAccess = 0
)

func ctlCode(function, method uint32) uint32 {
	return (stDeviceType << 16) | (fileAnyAccess << 14) | (function << 2) | method
}

// Control codes for driver functions 1..10, in the order they are defined.
var (
	ioctlInitialize          = ctlCode(1, methodNeither)
	ioctlDequeueEvent        = ctlCode(2, methodBuffered)
	ioctlRegisterProcesses   = ctlCode(3, methodBuffered)
	ioctlRegisterIPAddresses = ctlCode(4, methodBuffered)
	ioctlGetIPAddresses      = ctlCode(5, methodBuffered)
	ioctlSetConfiguration    = ctlCode(6, methodBuffered)
	ioctlGetConfiguration    = ctlCode(7, methodBuffered)
	ioctlClearConfiguration  = ctlCode(8, methodNeither)
	ioctlGetState            = ctlCode(9, methodBuffered)
	ioctlQueryProcess        = ctlCode(10, methodBuffered)
)
