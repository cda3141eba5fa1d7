// File: pipe/sync.go
// Author: momentics <momentics@gmail.com>
//
// txsync / rxsync: the zero-copy slot-swap protocol between a TX kring and
// its cross-linked peer RX kring, under the three-barrier fence schedule
// spec §4.5/§9 requires.

package pipe

import (
	"sync/atomic"

	"github.com/momentics/netmap/ring"
)

// prevMod returns (v - 1) mod n, for n > 0.
func prevMod(v, n uint32) uint32 {
	if v == 0 {
		return n - 1
	}
	return v - 1
}

// TxSync walks t (TX) and its peer r (RX), swapping netmap_slot records
// between the two rings as long as the sender has more to publish (up to
// t.rhead) and the peer has free slots (up to just before the peer's
// current hwcur). It returns the number of slots swapped. If t has no
// ring or no peer, it returns 0 with no work done (carrier-down case).
func TxSync(t *ring.Kring) int {
	r := t.Peer()
	if t.Ring == nil || r == nil || r.Ring == nil {
		return 0
	}

	// Barrier 1: observe the peer's latest release before reading its
	// hwcur, so this walk never overruns slots the peer still owns.
	atomic.LoadUint32(barrierVar)
	peerHwcur := r.NrHwcur()
	peerLim := prevMod(peerHwcur, r.NumSlots)

	nmI := t.NrHwcur()
	nmJ := r.NrHwtail()
	head := t.Rhead

	tSlots := t.Ring.Slots()
	rSlots := r.Ring.Slots()

	n := 0
	for nmI != head && nmJ != peerLim {
		tSlots[nmI], rSlots[nmJ] = rSlots[nmJ], tSlots[nmI]
		nmI = (nmI + 1) % t.NumSlots
		nmJ = (nmJ + 1) % r.NumSlots
		n++
	}

	if n == 0 {
		return 0
	}

	// Barrier 2: publish the slot contents before advancing the indices
	// that tell the peer they're ready.
	atomic.StoreUint32(barrierVar, 0)

	t.SetNrHwcur(nmI)
	r.SetNrHwtail(nmJ)

	// Barrier 3: publish the advanced indices themselves.
	atomic.StoreUint32(barrierVar, 0)

	lim := t.NumSlots
	t.SetNrHwtail((t.NrHwtail() + uint32(n)) % lim)

	r.Notify(0)
	return n
}

// RxSync advances r's nr_hwcur to rhead (releasing slots the user has
// consumed) under a memory barrier, and if the value changed, notifies
// the peer TX kring.
func RxSync(r *ring.Kring) int {
	old := r.NrHwcur()
	if old == r.Rhead {
		return 0
	}
	atomic.StoreUint32(barrierVar, 0)
	r.SetNrHwcur(r.Rhead)
	if p := r.Peer(); p != nil {
		p.Notify(0)
	}
	return 1
}

// barrierVar is a dummy atomic location used purely to express the
// fence-schedule's sequence points via real atomic operations; its value
// carries no meaning.
var barrierVar = new(uint32)
