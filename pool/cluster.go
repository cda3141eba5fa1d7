// File: pool/cluster.go
// Author: momentics <momentics@gmail.com>
//
// ClusterAllocator is the narrow collaborator interface a Pool uses to
// obtain one physically contiguous, page-aligned region per cluster. Real
// contiguous-physical-address allocation is a kernel privilege the design
// places out of scope; the per-OS implementations here are the closest
// legal userspace/CGO analogue (NUMA-local, pinned virtual memory).

package pool

// ClusterAllocator obtains and releases cluster-sized backing memory.
type ClusterAllocator interface {
	// Alloc returns a byte slice of exactly size bytes backing one cluster,
	// preferring the given NUMA node (-1 = no preference).
	Alloc(size int, numaNode int) ([]byte, error)

	// Free releases a cluster previously returned by Alloc.
	Free(buf []byte)

	// Nodes reports the number of NUMA nodes visible to the allocator.
	Nodes() (int, error)
}

// defaultClusterAllocator is selected by NewDefaultClusterAllocator per OS.
func NewDefaultClusterAllocator() ClusterAllocator {
	return newPlatformClusterAllocator()
}
