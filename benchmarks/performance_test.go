// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for the netmap allocator/ring-fabric core.

package benchmarks

import (
	"testing"
	"unsafe"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/internal/concurrency"
	"github.com/momentics/netmap/memdomain"
	"github.com/momentics/netmap/pipe"
	"github.com/momentics/netmap/pool"
	"github.com/momentics/netmap/ring"
)

func newFinalizedDomain(b *testing.B) *memdomain.Global {
	b.Helper()
	alloc := pool.NewDefaultClusterAllocator()
	d := memdomain.NewGlobal(alloc, 0)
	params := [api.NumPoolKinds]memdomain.PoolParams{
		api.PoolIF:   {Size: 1024, Num: 8},
		api.PoolRING: {Size: uint32(ring.RingBlockSize(512)), Num: 4},
		api.PoolBUF:  {Size: 2048, Num: 20000},
	}
	if err := d.Config(params); err != nil {
		b.Fatal(err)
	}
	if err := d.Finalize(); err != nil {
		b.Fatal(err)
	}
	return d
}

// BenchmarkBufAllocFree measures the BUF pool's bitmap allocate/free path.
func BenchmarkBufAllocFree(b *testing.B) {
	d := newFinalizedDomain(b)
	p := d.Pool(api.PoolBUF)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx, _, err := p.Allocate(2)
		if err != nil {
			b.Fatal(err)
		}
		if err := p.FreeByIndex(idx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLockFreeQueueThroughput measures the fast-free accelerator
// queue's enqueue/dequeue pair cost in isolation.
func BenchmarkLockFreeQueueThroughput(b *testing.B) {
	q := concurrency.NewLockFreeQueue[uint32](1024)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := uint32(0)
		for pb.Next() {
			if !q.Enqueue(i) {
				q.Dequeue()
				q.Enqueue(i)
			}
			i++
		}
	})
}

// BenchmarkTxSync measures the slot-swap cost of a single txsync call
// between two cross-linked krings with no contention.
func BenchmarkTxSync(b *testing.B) {
	t := ring.NewKring(api.DirTX, 0, 64)
	r := ring.NewKring(api.DirRX, 0, 64)
	t.Ring = ring.NewNetmapRing(allocRing(b, 64), 64)
	r.Ring = ring.NewNetmapRing(allocRing(b, 64), 64)
	t.SetPeer(r)
	r.SetPeer(t)
	t.Rhead = 32

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.SetNrHwtail(0)
		t.SetNrHwcur(0)
		r.SetNrHwcur(32)
		pipe.TxSync(t)
	}
}

func allocRing(b *testing.B, numSlots uint32) uintptr {
	b.Helper()
	buf := make([]byte, ring.RingBlockSize(numSlots))
	return uintptr(unsafe.Pointer(&buf[0]))
}
