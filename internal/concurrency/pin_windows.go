//go:build windows
// +build windows

// Package concurrency
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation of driver-context affinity control, binding
// the current thread to a logical processor via SetThreadAffinityMask.
//
// Reference: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-setthreadaffinitymask

package concurrency

import (
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = modkernel32.NewProc("SetThreadAffinityMask")
)

// PinCurrentThread binds the current thread to cpuID. numaNode is accepted
// for interface symmetry with the Linux implementation; Windows NUMA steering
// for CPU affinity is not available through SetThreadAffinityMask alone.
func PinCurrentThread(numaNode int, cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 || cpuID >= 64 {
		return ErrAffinityNotSupported
	}
	thread, err := windows.GetCurrentThread()
	if err != nil {
		return err
	}
	mask := uintptr(1) << uint(cpuID)
	old, _, callErr := procSetThreadAffinityMask.Call(uintptr(thread), mask)
	if old == 0 {
		_ = callErr
		return ErrAffinityNotSupported
	}
	return nil
}

// UnpinCurrentThread releases the OS thread lock taken by PinCurrentThread.
// Windows has no portable "reset to all CPUs" call exposed here, so this
// only undoes the Go-level thread lock.
func UnpinCurrentThread() error {
	runtime.UnlockOSThread()
	return nil
}

// NUMANodes reports 1: this module does not implement Windows NUMA topology
// discovery, only the VirtualAllocExNuma cluster path in pool/cluster_windows.go.
func NUMANodes() int {
	return 1
}
