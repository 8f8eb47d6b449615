//go:build windows

package splittun

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeExclusionConfig_RoundTripsOffsetsAndLengths(t *testing.T) {
	paths := []string{`\Device\HarddiskVolume3\Program Files\App\app.exe`, `\Device\HarddiskVolume1\Windows\explorer.exe`}
	buf := encodeExclusionConfig(paths)

	numEntries := leUint64(buf[0:8])
	totalLength := leUint64(buf[8:16])
	assert.Equal(t, uint64(len(paths)), numEntries)
	assert.Equal(t, uint64(len(buf)), totalLength)

	entries := buf[headerSize : headerSize+configurationEntrySize*len(paths)]
	strings := buf[headerSize+configurationEntrySize*len(paths):]

	for i, want := range paths {
		entry := entries[i*configurationEntrySize : (i+1)*configurationEntrySize]
		offset := leUint64(entry[0:8])
		length := leUint16(entry[8:10])
		got := decodeUTF16(strings[offset : offset+uint64(length)])
		assert.Equal(t, want, got)
	}
}

func TestEncodeProcessRegistry_EmptyDevicePathGetsZeroOffset(t *testing.T) {
	buf := encodeProcessRegistry([]processRegistryInput{
		{PID: 4, ParentPID: 0, DevicePath: ""},
	})

	entries := buf[headerSize : headerSize+processRegistryEntrySize]
	assert.Equal(t, uint64(4), leUint64(entries[0:8]))
	assert.Equal(t, uint64(0), leUint64(entries[8:16]))
	assert.Equal(t, uint64(0), leUint64(entries[16:24]))
	assert.Equal(t, uint16(0), leUint16(entries[24:26]))
}

func TestEncodeInterfaceAddresses_AbsentFieldsAreZero(t *testing.T) {
	tunnelV4 := netip.MustParseAddr("10.64.0.2")
	internetV4 := netip.MustParseAddr("192.168.1.10")

	buf := encodeInterfaceAddresses(tunnelV4, internetV4, netip.Addr{}, netip.Addr{})

	assert.Len(t, buf, interfaceAddressesSize)
	assert.Equal(t, []byte{10, 64, 0, 2}, buf[0:4])
	assert.Equal(t, []byte{192, 168, 1, 10}, buf[4:8])
	assert.Equal(t, make([]byte, 16), buf[8:24])
	assert.Equal(t, make([]byte, 16), buf[24:40])
}

func TestUTF16RoundTrip(t *testing.T) {
	s := `\Device\HarddiskVolume3\Users\Test\app name with spaces.exe`
	assert.Equal(t, s, decodeUTF16(encodeUTF16(s)))
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
