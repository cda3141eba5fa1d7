//go:build linux && cgo
// +build linux,cgo

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux-specific implementation of driver-context pinning (NUMA and CPU
// affinity), used so the goroutine driving a pipe/veth pair's txsync/rxsync
// loop runs on the same NUMA node as the domain's buffer pool.

package concurrency

/*
#cgo LDFLAGS: -lnuma
#include <sched.h>
#include <pthread.h>
#include <numa.h>
*/
import "C"
import "runtime"

// PinCurrentThread pins the calling OS thread to the given CPU core and,
// if numaNode >= 0, steers subsequent allocations to that NUMA node.
func PinCurrentThread(numaNode int, cpuID int) error {
	runtime.LockOSThread()
	if cpuID >= 0 {
		var mask C.cpu_set_t
		C.CPU_ZERO(&mask)
		C.CPU_SET(C.int(cpuID), &mask)
		if C.pthread_setaffinity_np(C.pthread_self(), C.sizeof_cpu_set_t, &mask) != 0 {
			return ErrAffinityNotSupported
		}
	}
	if numaNode >= 0 {
		C.numa_run_on_node(C.int(numaNode))
	}
	return nil
}

// UnpinCurrentThread clears any NUMA steering and releases the OS thread lock.
func UnpinCurrentThread() error {
	if C.numa_available() >= 0 {
		C.numa_run_on_node(-1)
	}
	runtime.UnlockOSThread()
	return nil
}

// NUMANodes returns the number of configured NUMA nodes, or 1 if NUMA is unavailable.
func NUMANodes() int {
	if C.numa_available() < 0 {
		return 1
	}
	return int(C.numa_max_node()) + 1
}
