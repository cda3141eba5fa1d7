//go:build linux && cgo
// +build linux,cgo

// File: pool/cluster_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux cluster allocator using libnuma via CGO. Clusters backing the BUF
// pool may be handed to NIC hardware, so allocation prefers a NUMA-local,
// page-aligned region.

package pool

/*
#cgo LDFLAGS: -lnuma
#include <numa.h>
#include <stdlib.h>
void* go_cluster_alloc(int size, int node) {
	if (numa_available() == -1 || node < 0) {
		void *p = NULL;
		if (posix_memalign(&p, 4096, size) != 0) {
			return NULL;
		}
		return p;
	}
	return numa_alloc_onnode(size, node);
}
void go_cluster_free(void *mem, int size, int node) {
	if (numa_available() == -1 || node < 0) {
		free(mem);
		return;
	}
	numa_free(mem, size);
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

type linuxClusterAllocator struct{}

func newPlatformClusterAllocator() ClusterAllocator {
	return &linuxClusterAllocator{}
}

func (l *linuxClusterAllocator) Alloc(size int, node int) ([]byte, error) {
	ptr := C.go_cluster_alloc(C.int(size), C.int(node))
	if ptr == nil {
		return nil, fmt.Errorf("pool: linux cluster alloc failed (size=%d node=%d)", size, node)
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (l *linuxClusterAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	C.go_cluster_free(unsafe.Pointer(&buf[0]), C.int(len(buf)), -1)
}

func (l *linuxClusterAllocator) Nodes() (int, error) {
	nodes := C.numa_max_node()
	if nodes < 0 {
		return 1, fmt.Errorf("pool: NUMA not available")
	}
	return int(nodes + 1), nil
}
