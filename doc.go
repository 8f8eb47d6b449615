// Package splittun is a user-mode client for the Mullvad split-tunnel
// kernel driver. It owns the exclusive device handle, drives the driver's
// state machine, encodes and decodes the driver's binary control and event
// buffers, and runs the dedicated event-reader thread.
//
// Higher-level reconciliation (combining route, tunnel, and exclusion-path
// state into driver requests) lives in the engine subpackage; this package
// only speaks the device's wire contract.
package splittun
