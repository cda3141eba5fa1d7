// File: internal/normalize/normalizer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Index normalization for NUMA nodes and CPU indices, used by the
// affinity adapter so an out-of-range request falls back to node/CPU 0
// instead of panicking.

package normalize

import (
	"log"
	"runtime"

	"github.com/momentics/netmap/internal/concurrency"
)

// NUMANode validates requested against [0, maxNodes).
func NUMANode(requested, maxNodes int) int {
	if maxNodes < 1 {
		log.Printf("normalize: NUMA topology reported zero nodes, falling back to node 0")
		return 0
	}
	if requested < 0 || requested >= maxNodes {
		log.Printf("normalize: NUMA node %d out of range [0,%d), falling back to node 0", requested, maxNodes)
		return 0
	}
	return requested
}

// NUMANodeAuto normalizes requested against the current topology, or
// picks node 0 when requested is negative.
func NUMANodeAuto(requested int) int {
	cnt := concurrency.NUMANodes()
	if requested < 0 {
		return 0
	}
	return NUMANode(requested, cnt)
}

// CPUIndex validates requested against [0, maxCPUs).
func CPUIndex(requested, maxCPUs int) int {
	if maxCPUs < 1 {
		return 0
	}
	if requested < 0 || requested >= maxCPUs {
		log.Printf("normalize: CPU index %d out of range [0,%d), falling back to 0", requested, maxCPUs)
		return 0
	}
	return requested
}

// CPUIndexAuto picks the preferred CPU index, or 0 if unset.
func CPUIndexAuto(requested int) int {
	if requested < 0 {
		return 0
	}
	return CPUIndex(requested, runtime.NumCPU())
}
