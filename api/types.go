// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants for the netmap
// allocator/ring-fabric core.

package api

// PoolKind identifies one of the three pools a memory domain bundles, in
// their fixed shared-memory layout order: IF | RING | BUF.
type PoolKind int

const (
	PoolIF PoolKind = iota
	PoolRING
	PoolBUF
	numPoolKinds
)

func (k PoolKind) String() string {
	switch k {
	case PoolIF:
		return "if"
	case PoolRING:
		return "ring"
	case PoolBUF:
		return "buf"
	default:
		return "unknown"
	}
}

// NumPoolKinds is the fixed number of pools every memory domain bundles.
const NumPoolKinds = int(numPoolKinds)

// Dir identifies a ring's transfer direction.
type Dir int

const (
	DirTX Dir = iota
	DirRX
)

func (d Dir) String() string {
	if d == DirTX {
		return "tx"
	}
	return "rx"
}

// Swap returns the opposite direction, used when cross-linking a pipe pair
// (TX of one adapter maps to RX of its peer).
func (d Dir) Swap() Dir {
	if d == DirTX {
		return DirRX
	}
	return DirTX
}

// DomainFlags are the per-domain state bits described in the data model.
type DomainFlags uint32

const (
	DomainFinalized DomainFlags = 1 << iota
	DomainHidden
	DomainPrivate
	DomainIO
)

// KringFlags are the per-kring mode bits.
type KringFlags uint32

const (
	KringNetmapOn KringFlags = 1 << iota
	KringNeedRing
)

// Reserved buffer indices: never allocated, never marked free.
const (
	ReservedBufTX uint32 = 0
	ReservedBufRX uint32 = 1
	NumReservedBufs = 2
)

// IfNameSize matches the fixed-size name field of netmap_if.
const IfNameSize = 16

// MaxClustSize bounds how large a single pool cluster may be (spec §4.1).
const MaxClustSize = 4 << 20 // 4 MiB

// NetmapBufMaxNum is the floor on BUF pool object count used by E1.
const NetmapBufMaxNum = 20000

// PageSize is the assumed page granularity clusters must align to.
// Real deployments should read this from the OS; userspace callers of this
// module that need the true runtime value should prefer
// golang.org/x/sys/unix.Getpagesize() where available. 4096 is correct for
// the overwhelming majority of amd64/arm64 Linux and Windows targets this
// module's CGO cluster backends are written for.
const PageSize = 4096
