// File: pipe/lifecycle.go
// Author: momentics <momentics@gmail.com>
//
// krings_create / krings_delete / register on-off for a peer-pipe pair.

package pipe

import (
	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/internal/concurrency"
	"github.com/momentics/netmap/pool"
	"github.com/momentics/netmap/ring"
)

// Endpoint names one side of a peer-pipe pair: its backing pools, offset
// resolver, TX/RX kring sets, and their descriptor counts.
type Endpoint struct {
	RingPool, BufPool *pool.Pool
	Resolver          ring.OffsetResolver
	Tx, Rx            []*ring.Kring
	NDescTx, NDescRx  uint32
	HostRing          bool
}

func createEndpointRings(e *Endpoint) error {
	if err := ring.RingsCreate(e.RingPool, e.BufPool, e.Resolver, e.Tx, e.NDescTx, api.DirTX, e.HostRing); err != nil {
		return err
	}
	if err := ring.RingsCreate(e.RingPool, e.BufPool, e.Resolver, e.Rx, e.NDescRx, api.DirRX, e.HostRing); err != nil {
		_ = ring.RingsDelete(e.RingPool, e.BufPool, e.Tx, e.HostRing)
		return err
	}
	return nil
}

func deleteEndpointRings(e *Endpoint) error {
	if err := ring.RingsDelete(e.RingPool, e.BufPool, e.Tx, e.HostRing); err != nil {
		return err
	}
	return ring.RingsDelete(e.RingPool, e.BufPool, e.Rx, e.HostRing)
}

// KringsCreate creates a's krings, then b's krings (if not already
// present), then cross-links them. On failure of the second step it
// rolls back the first. A missing peer endpoint is reported as
// PeerNotFound by the caller before this is invoked.
func KringsCreate(a, b *Endpoint) error {
	if err := createEndpointRings(a); err != nil {
		return err
	}
	if err := createEndpointRings(b); err != nil {
		_ = deleteEndpointRings(a)
		return err
	}
	return CrossLink(Pair{Tx: a.Tx, Rx: a.Rx}, Pair{Tx: b.Tx, Rx: b.Rx})
}

// needRing reports whether any kring in ks still has NEEDRING set.
func needRing(ks []*ring.Kring) bool {
	for _, k := range ks {
		if k.NeedRing() {
			return true
		}
	}
	return false
}

// KringsDelete is a no-op if any of a's krings still have NEEDRING set by
// the peer. Otherwise it deletes a's krings and the peer's krings.
func KringsDelete(a, b *Endpoint) error {
	if needRing(a.Tx) || needRing(a.Rx) {
		return nil
	}
	if err := deleteEndpointRings(a); err != nil {
		return err
	}
	return deleteEndpointRings(b)
}

// RegisterOn transitions pending-on krings to NETMAP_ON: it flags the
// peer's NEEDRING bit (so the peer-side ring gets created), creates any
// missing peer rings, then sets each pending-on kring's mode.
func RegisterOn(local, peer *Endpoint, pendingTx, pendingRx []*ring.Kring) error {
	for _, k := range pendingTx {
		if p := k.Peer(); p != nil {
			p.Flags |= api.KringNeedRing
		}
	}
	for _, k := range pendingRx {
		if p := k.Peer(); p != nil {
			p.Flags |= api.KringNeedRing
		}
	}
	if err := createEndpointRings(peer); err != nil {
		return err
	}
	for _, k := range pendingTx {
		k.Flags |= api.KringNetmapOn
	}
	for _, k := range pendingRx {
		k.Flags |= api.KringNetmapOn
	}
	return nil
}

// RegisterOff clears native flags and, for each pending-off kring, clears
// its mode and the peer's NEEDRING, then invokes the peer's rings_delete
// (which keeps any ring still users>0 or NEEDRING elsewhere). Calling
// this twice in a row is idempotent: the second call finds nothing left
// to clear (spec §8 property 7).
func RegisterOff(peer *Endpoint, pendingTx, pendingRx []*ring.Kring) error {
	for _, k := range pendingTx {
		k.Flags &^= api.KringNetmapOn
		if p := k.Peer(); p != nil {
			p.Flags &^= api.KringNeedRing
		}
	}
	for _, k := range pendingRx {
		k.Flags &^= api.KringNetmapOn
		if p := k.Peer(); p != nil {
			p.Flags &^= api.KringNeedRing
		}
	}
	return deleteEndpointRings(peer)
}

// notifyHandler adapts a func() closure to concurrency.EventHandler so it
// can be posted through an EventLoop.
type notifyHandler struct{}

func (notifyHandler) HandleEvent(ev concurrency.Event) {
	if fn, ok := ev.Data.(func()); ok {
		fn()
	}
}

// NotifyDispatcher wires a kring's nm_notify to an async event loop
// (teacher's batched EventLoop over RingBuffer[Event]) instead of calling
// the peer synchronously in-line, for callers that want notify off the
// txsync caller's stack.
type NotifyDispatcher struct {
	loop *concurrency.EventLoop
}

// NewNotifyDispatcher wraps an already-running EventLoop and registers
// the handler that runs posted notify closures.
func NewNotifyDispatcher(loop *concurrency.EventLoop) *NotifyDispatcher {
	loop.RegisterHandler(notifyHandler{})
	return &NotifyDispatcher{loop: loop}
}

// Wrap returns a NotifyFunc that posts a wake event onto the dispatcher's
// event loop instead of invoking fn inline.
func (d *NotifyDispatcher) Wrap(fn ring.NotifyFunc) ring.NotifyFunc {
	return func(k *ring.Kring, flags int) int {
		d.loop.PostEvent(concurrency.Event{Data: func() { fn(k, flags) }})
		return 0
	}
}
