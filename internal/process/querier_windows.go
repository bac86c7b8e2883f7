//go:build windows

package process

import (
	"fmt"
	"syscall"
	"unsafe"
)

const (
	th32csSnapProcess  = 0x00000002
	invalidHandleValue = ^uintptr(0)
)

// processEntry32 represents an entry in the system's process list
type processEntry32 struct {
	Size            uint32
	Usage           uint32
	ProcessID       uint32
	DefaultHeapID   uintptr
	ModuleID        uint32
	Threads         uint32
	ParentProcessID uint32
	PriClassBase    int32
	Flags           uint32
	ExeFile         [260]uint16 // MAX_PATH
}

var (
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procCreateToolhelp32Snapshot = kernel32.NewProc("CreateToolhelp32Snapshot")
	procProcess32FirstW          = kernel32.NewProc("Process32FirstW")
	procProcess32NextW           = kernel32.NewProc("Process32NextW")
	procCloseHandle              = kernel32.NewProc("CloseHandle")
)

// SnapshotQuerier implements Querier with a Toolhelp32 process snapshot.
type SnapshotQuerier struct{}

// NewQuerier returns the platform querier.
func NewQuerier() Querier {
	return SnapshotQuerier{}
}

// Running counts processes whose executable name equals name.
func (SnapshotQuerier) Running(name string) (int, error) {
	snapshot, _, err := procCreateToolhelp32Snapshot.Call(uintptr(th32csSnapProcess), 0)
	if snapshot == invalidHandleValue {
		return 0, fmt.Errorf("failed to create process snapshot: %w", err)
	}
	defer procCloseHandle.Call(snapshot)

	var pe32 processEntry32
	pe32.Size = uint32(unsafe.Sizeof(pe32))

	ret, _, err := procProcess32FirstW.Call(snapshot, uintptr(unsafe.Pointer(&pe32)))
	if ret == 0 {
		return 0, fmt.Errorf("failed to get first process: %w", err)
	}

	count := 0
	for {
		if syscall.UTF16ToString(pe32.ExeFile[:]) == name {
			count++
		}

		ret, _, _ := procProcess32NextW.Call(snapshot, uintptr(unsafe.Pointer(&pe32)))
		if ret == 0 {
			break // No more processes
		}
	}

	return count, nil
}

var _ Querier = SnapshotQuerier{}
