//go:build windows

package routemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"
)

func TestConvertChangeType(t *testing.T) {
	assert.Equal(t, ChangeUpdatedDetails, convertChangeType(0))
	assert.Equal(t, ChangeAdded, convertChangeType(1))
	assert.Equal(t, ChangeRemoved, convertChangeType(2))
	assert.Equal(t, ChangeUpdatedDetails, convertChangeType(99))
}

func TestFamily_WinAddressFamily(t *testing.T) {
	assert.Equal(t, uint16(windows.AF_INET), FamilyV4.winAddressFamily())
	assert.Equal(t, uint16(windows.AF_INET6), FamilyV6.winAddressFamily())
}

func TestLuidToIpError_Unwrap(t *testing.T) {
	inner := assert.AnError
	err := &LuidToIpError{Luid: 7, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "7")
}

func TestEncodeUnspecifiedSockaddrInet_SetsFamilyAndZeroAddress(t *testing.T) {
	v4 := encodeUnspecifiedSockaddrInet(FamilyV4)
	assert.Len(t, v4, sockaddrInetSize)
	assert.Equal(t, uint16(windows.AF_INET), uint16(v4[0])|uint16(v4[1])<<8)
	assert.Equal(t, make([]byte, sockaddrInetSize-2), v4[2:])

	v6 := encodeUnspecifiedSockaddrInet(FamilyV6)
	assert.Equal(t, uint16(windows.AF_INET6), uint16(v6[0])|uint16(v6[1])<<8)
	assert.Equal(t, make([]byte, sockaddrInetSize-2), v6[2:])
}
