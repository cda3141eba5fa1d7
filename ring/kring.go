// File: ring/kring.go
// Author: momentics <momentics@gmail.com>
//
// Kring is the kernel-side shadow of a netmap_ring: indices, mode flags,
// peer pointer, users count, and notify callback. Unlike NetmapRing it is
// not part of the shared-memory ABI and is a plain Go struct.

package ring

import (
	"sync/atomic"

	"github.com/momentics/netmap/api"
)

// NotifyFunc mirrors nm_notify(kring, flags) -> int.
type NotifyFunc func(k *Kring, flags int) int

// Kring is the kernel-side descriptor associated with one NetmapRing.
type Kring struct {
	Ring *NetmapRing

	// nrHwcur / nrHwtail are published under the three-barrier discipline
	// spec §4.5 describes; atomic.Uint32 gives the acquire/release
	// semantics the fence schedule requires without relying on a stronger
	// default than necessary.
	nrHwcur  atomic.Uint32
	nrHwtail atomic.Uint32

	Rhead uint32
	Rcur  uint32
	Rtail uint32

	NumSlots uint32
	Flags    api.KringFlags
	Dir      api.Dir
	RingID   int

	Users int32

	// pipe is the RCU-style peer back-pointer. Go's GC guarantees a
	// concurrently-detached peer's memory stays valid for any goroutine
	// still holding a pointer loaded from here, so a plain atomic pointer
	// is the correct idiomatic simplification of the read-side critical
	// section the original RCU usage models.
	pipe atomic.Pointer[Kring]

	NmNotify NotifyFunc
}

// NewKring constructs a kring with num_slots descriptors, initially
// without a backing ring (allocated lazily by RingsCreate).
func NewKring(dir api.Dir, ringID int, numSlots uint32) *Kring {
	return &Kring{
		NumSlots: numSlots,
		Dir:      dir,
		RingID:   ringID,
	}
}

// NrHwcur / NrHwtail / SetNrHwcur / SetNrHwtail give atomic acquire/release
// access to the kring's published indices.
func (k *Kring) NrHwcur() uint32      { return k.nrHwcur.Load() }
func (k *Kring) SetNrHwcur(v uint32)  { k.nrHwcur.Store(v) }
func (k *Kring) NrHwtail() uint32     { return k.nrHwtail.Load() }
func (k *Kring) SetNrHwtail(v uint32) { k.nrHwtail.Store(v) }

// Peer loads the current peer kring, or nil if unlinked.
func (k *Kring) Peer() *Kring { return k.pipe.Load() }

// SetPeer stores the peer kring pointer.
func (k *Kring) SetPeer(p *Kring) { k.pipe.Store(p) }

// NeedRing reports whether the peer requires this kring's ring to exist.
func (k *Kring) NeedRing() bool { return k.Flags&api.KringNeedRing != 0 }

// NetmapOn reports whether the kring is in NETMAP_ON mode.
func (k *Kring) NetmapOn() bool { return k.Flags&api.KringNetmapOn != 0 }

// Notify invokes NmNotify if set, returning 0 for "no callback installed".
func (k *Kring) Notify(flags int) int {
	if k.NmNotify == nil {
		return 0
	}
	return k.NmNotify(k, flags)
}
