//go:build windows

package splittun

import (
	"encoding/binary"
	"net/netip"
	"unicode/utf16"
)

// Wire layout shared by every variable-size control buffer the driver
// accepts:
//
//	Header   { num_entries uintptr; total_length uintptr }
//	Entry[n] { ... fixed-size per message kind ... }
//	Strings  { UTF-16 code units, packed, no NUL }
//
// Entries reference their string via a {offset, byte_length} pair measured
// from the start of the string region. Widths are native-pointer width; the
// driver and this client both target 64-bit Windows, so "native width"
// below means 8 bytes, matching the driver's `usize`/`RawHandle` fields.
// Anyone porting this to 32-bit Windows must shrink these to 4 bytes and
// re-check alignment against the driver's own struct definitions (see
// DESIGN.md and spec §9's FFI design note).
const (
	nativeWidth = 8

	headerSize = 2 * nativeWidth // num_entries + total_length

	// configurationEntrySize is {name_offset uintptr; name_length uint16},
	// padded to 8-byte alignment like the driver's repr(C) struct.
	configurationEntrySize = nativeWidth + 8

	// processRegistryEntrySize is
	// {pid uintptr; parent_pid uintptr; image_name_offset uintptr; image_name_size uint16},
	// padded to 8-byte alignment.
	processRegistryEntrySize = 3*nativeWidth + 8
)

func putHeader(buf []byte, numEntries, totalLength uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], numEntries)
	binary.LittleEndian.PutUint64(buf[8:16], totalLength)
}

func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// encodeExclusionConfig builds a ConfigurationHeader + ConfigurationEntry[n]
// + string-region buffer for the SetConfiguration ioctl. Callers MUST NOT
// call this with an empty slice: an empty exclusion set is the "clear
// configuration" state, sent via ClearConfiguration instead (see the
// empty-paths law in spec §8).
func encodeExclusionConfig(devicePaths []string) []byte {
	encodedPaths := make([][]byte, len(devicePaths))
	stringsLen := 0
	for i, p := range devicePaths {
		encodedPaths[i] = encodeUTF16(p)
		stringsLen += len(encodedPaths[i])
	}

	total := headerSize + configurationEntrySize*len(devicePaths) + stringsLen
	buf := make([]byte, total)

	putHeader(buf, uint64(len(devicePaths)), uint64(total))

	entries := buf[headerSize : headerSize+configurationEntrySize*len(devicePaths)]
	strings := buf[headerSize+configurationEntrySize*len(devicePaths):]

	stringOffset := uint64(0)
	for i, encoded := range encodedPaths {
		entry := entries[i*configurationEntrySize : (i+1)*configurationEntrySize]
		binary.LittleEndian.PutUint64(entry[0:8], stringOffset)
		binary.LittleEndian.PutUint16(entry[8:10], uint16(len(encoded)))

		copy(strings[stringOffset:], encoded)
		stringOffset += uint64(len(encoded))
	}

	return buf
}

// interfaceAddressesSize is the fixed SplitTunnelAddresses layout the
// driver expects for RegisterIpAddresses/GetIpAddresses:
// {tunnel_ipv4 IN_ADDR; internet_ipv4 IN_ADDR; tunnel_ipv6 IN6_ADDR; internet_ipv6 IN6_ADDR},
// 4+4+16+16 bytes, naturally aligned with no padding. An absent address is
// encoded as its all-zero form, not a separate presence flag: the driver
// struct is zeroed before any field is filled in.
const interfaceAddressesSize = 4 + 4 + 16 + 16

// encodeInterfaceAddresses builds the RegisterIpAddresses/GetIpAddresses
// payload. Any invalid (zero-value) netip.Addr is left as the all-zero
// placeholder.
func encodeInterfaceAddresses(tunnelV4, internetV4, tunnelV6, internetV6 netip.Addr) []byte {
	buf := make([]byte, interfaceAddressesSize)
	putAddrField(buf[0:4], tunnelV4)
	putAddrField(buf[4:8], internetV4)
	putAddrField(buf[8:24], tunnelV6)
	putAddrField(buf[24:40], internetV6)
	return buf
}

func putAddrField(dst []byte, addr netip.Addr) {
	if !addr.IsValid() {
		return
	}
	b := addr.As16()
	if addr.Is4() {
		b4 := addr.As4()
		copy(dst, b4[:])
		return
	}
	copy(dst, b[:])
}

// processRegistryInput is one row of the process tree as handed to the
// codec for serialisation; see process.Info for the richer view that also
// carries the creation time.
type processRegistryInput struct {
	PID        uint32
	ParentPID  uint32
	DevicePath string
}

// encodeProcessRegistry builds a ProcessRegistryHeader + ProcessRegistryEntry[n]
// + string-region buffer for the RegisterProcesses ioctl.
func encodeProcessRegistry(processes []processRegistryInput) []byte {
	encodedPaths := make([][]byte, len(processes))
	stringsLen := 0
	for i, p := range processes {
		if p.DevicePath != "" {
			encodedPaths[i] = encodeUTF16(p.DevicePath)
			stringsLen += len(encodedPaths[i])
		}
	}

	total := headerSize + processRegistryEntrySize*len(processes) + stringsLen
	buf := make([]byte, total)

	putHeader(buf, uint64(len(processes)), uint64(total))

	entries := buf[headerSize : headerSize+processRegistryEntrySize*len(processes)]
	strings := buf[headerSize+processRegistryEntrySize*len(processes):]

	stringOffset := uint64(0)
	for i, p := range processes {
		entry := entries[i*processRegistryEntrySize : (i+1)*processRegistryEntrySize]
		binary.LittleEndian.PutUint64(entry[0:8], uint64(p.PID))
		binary.LittleEndian.PutUint64(entry[8:16], uint64(p.ParentPID))

		if encoded := encodedPaths[i]; len(encoded) > 0 {
			binary.LittleEndian.PutUint64(entry[16:24], stringOffset)
			binary.LittleEndian.PutUint16(entry[24:26], uint16(len(encoded)))

			copy(strings[stringOffset:], encoded)
			stringOffset += uint64(len(encoded))
		}
	}

	return buf
}
