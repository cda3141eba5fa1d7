//go:build windows
// +build windows

// File: pool/cluster_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows cluster allocator using VirtualAllocExNuma.

package pool

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocExNuma = modkernel32.NewProc("VirtualAllocExNuma")
	procVirtualFree        = modkernel32.NewProc("VirtualFree")
)

type windowsClusterAllocator struct{}

func newPlatformClusterAllocator() ClusterAllocator {
	return &windowsClusterAllocator{}
}

func (w *windowsClusterAllocator) Alloc(size int, node int) ([]byte, error) {
	proc, err := windows.GetCurrentProcess()
	if err != nil {
		return nil, err
	}
	ptr, _, callErr := procVirtualAllocExNuma.Call(
		uintptr(proc),
		0,
		uintptr(size),
		uintptr(windows.MEM_RESERVE|windows.MEM_COMMIT),
		uintptr(windows.PAGE_READWRITE),
		uintptr(node),
	)
	if ptr == 0 {
		return nil, errors.New("pool: VirtualAllocExNuma failed: " + callErr.Error())
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size), nil
}

func (w *windowsClusterAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	procVirtualFree.Call(addr, 0, uintptr(windows.MEM_RELEASE))
}

func (w *windowsClusterAllocator) Nodes() (int, error) {
	return 1, nil
}
