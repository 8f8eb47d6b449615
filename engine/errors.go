//go:build windows

package engine

import (
	"fmt"

	"github.com/mullvad/talpid-splittun/routemon"
)

// IpParseError means one of the tunnel's advertised addresses could not be
// parsed as an IP address.
type IpParseError struct {
	Input string
	Err   error
}

func (e *IpParseError) Error() string {
	return fmt.Sprintf("failed to parse tunnel address %q: %v", e.Input, e.Err)
}
func (e *IpParseError) Unwrap() error { return e.Err }

// ObtainDefaultRouteError means the one-shot best-default-route probe
// failed for a reason other than "no such route" — an interface simply
// lacking IPv6 connectivity is not an error and never produces this type.
type ObtainDefaultRouteError struct {
	Family routemon.Family
	Err    error
}

func (e *ObtainDefaultRouteError) Error() string {
	return fmt.Sprintf("failed to obtain default route for family %v: %v", e.Family, e.Err)
}
func (e *ObtainDefaultRouteError) Unwrap() error { return e.Err }

// ClearIpsError means registering the all-absent address set with the
// driver failed.
type ClearIpsError struct {
	Err error
}

func (e *ClearIpsError) Error() string { return fmt.Sprintf("failed to clear registered IPs: %v", e.Err) }
func (e *ClearIpsError) Unwrap() error { return e.Err }

// StartPathMonitorError means the engine could not wire up the path
// monitor it depends on.
type StartPathMonitorError struct {
	Err error
}

func (e *StartPathMonitorError) Error() string {
	return fmt.Sprintf("failed to start path monitor: %v", e.Err)
}
func (e *StartPathMonitorError) Unwrap() error { return e.Err }
