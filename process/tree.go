//go:build windows

// Package process snapshots the running process table and resolves each
// process's creation time and NT device path, breaking PID-recycling
// cycles in the resulting parent/child graph.
package process

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Info describes one process as seen in a single snapshot.
type Info struct {
	PID          uint32
	ParentPID    uint32
	CreationTime uint64 // 100-ns intervals since the Windows epoch; 0 if unknown
	DevicePath   string // NT device path, e.g. \Device\HarddiskVolume3\...; empty if unknown
}

// processNameNative asks QueryFullProcessImageName for the NT device path
// instead of the drive-letter path (PROCESS_NAME_NATIVE).
const processNameNative = 1

// BuildTree snapshots every running process, resolves what it can about
// each one, and repairs parent links that pid-recycling would otherwise
// make stale: if a process's recorded parent PID was reused by a process
// created after the child, the parent link is zeroed. Order of the
// returned slice is unspecified.
func BuildTree() ([]Info, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	byPID := make(map[uint32]*Info)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	err = windows.Process32First(snapshot, &entry)
	for err == nil {
		pid := entry.ProcessID
		info, skip, openErr := resolveProcess(pid, entry.ParentProcessID)
		if openErr != nil {
			return nil, openErr
		}
		if !skip {
			byPID[pid] = info
		}

		entry = windows.ProcessEntry32{Size: entry.Size}
		err = windows.Process32Next(snapshot, &entry)
	}
	if err != nil && err != windows.ERROR_NO_MORE_FILES {
		return nil, err
	}

	repairPIDRecycling(byPID)

	out := make([]Info, 0, len(byPID))
	for _, info := range byPID {
		out = append(out, *info)
	}
	return out, nil
}

// resolveProcess opens one process and fills in what it can. A
// permission-denied or invalid-parameter failure to open the process
// (system/idle/csrss and similar protected processes) is reported via
// skip=true, not as an error: the process is simply omitted from the
// tree. Any other failure to open aborts the whole snapshot.
func resolveProcess(pid, parentPID uint32) (info *Info, skip bool, err error) {
	handle, openErr := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if openErr != nil {
		if errors.Is(openErr, windows.ERROR_ACCESS_DENIED) || errors.Is(openErr, windows.ERROR_INVALID_PARAMETER) {
			return nil, true, nil
		}
		return nil, false, openErr
	}
	defer windows.CloseHandle(handle)

	info = &Info{PID: pid, ParentPID: parentPID}

	if creation, ok := getCreationTime(handle); ok {
		info.CreationTime = creation
	}
	if path, ok := getDevicePath(handle); ok {
		info.DevicePath = path
	}

	return info, false, nil
}

func getCreationTime(h windows.Handle) (uint64, bool) {
	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0, false
	}
	return uint64(creation.HighDateTime)<<32 | uint64(creation.LowDateTime), true
}

func getDevicePath(h windows.Handle) (string, bool) {
	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, processNameNative, &buf[0], &size); err != nil {
		return "", false
	}
	return windows.UTF16ToString(buf[:size]), true
}

// repairPIDRecycling zeroes parent_pid wherever the apparent parent's
// creation time is strictly greater than the child's: the recorded
// parent PID was necessarily recycled and no longer identifies the real
// parent.
func repairPIDRecycling(byPID map[uint32]*Info) {
	for _, info := range byPID {
		if info.ParentPID == 0 {
			continue
		}
		parent, ok := byPID[info.ParentPID]
		if !ok {
			continue
		}
		if parent.CreationTime > info.CreationTime {
			info.ParentPID = 0
		}
	}
}
