package pipe

import (
	"testing"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/pool"
	"github.com/momentics/netmap/ring"
)

type fakeResolver struct {
	base map[api.PoolKind]int64
	p    map[api.PoolKind]*pool.Pool
}

func (f *fakeResolver) GlobalOffset(kind api.PoolKind, vaddr uintptr) (int64, error) {
	off, err := f.p[kind].OffsetOf(vaddr)
	if err != nil {
		return 0, err
	}
	return f.base[kind] + int64(off), nil
}

func (f *fakeResolver) PoolBaseOffset(kind api.PoolKind) int64 {
	return f.base[kind]
}

func newTestEndpoints(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	alloc := pool.NewDefaultClusterAllocator()
	ringPool := pool.NewPool(api.PoolRING, alloc, -1)
	bufPool := pool.NewPool(api.PoolBUF, alloc, -1)
	if err := ringPool.Configure(ring.RingBlockSize(64), 16); err != nil {
		t.Fatalf("configure ring: %v", err)
	}
	if err := ringPool.Finalize(); err != nil {
		t.Fatalf("finalize ring: %v", err)
	}
	if err := bufPool.Configure(2048, 512); err != nil {
		t.Fatalf("configure buf: %v", err)
	}
	if err := bufPool.Finalize(); err != nil {
		t.Fatalf("finalize buf: %v", err)
	}
	resolver := &fakeResolver{
		base: map[api.PoolKind]int64{api.PoolRING: 0, api.PoolBUF: int64(ringPool.MemTotal())},
		p:    map[api.PoolKind]*pool.Pool{api.PoolRING: ringPool, api.PoolBUF: bufPool},
	}

	a := &Endpoint{
		RingPool: ringPool, BufPool: bufPool, Resolver: resolver,
		Tx: []*ring.Kring{ring.NewKring(api.DirTX, 0, 32)},
		Rx: []*ring.Kring{ring.NewKring(api.DirRX, 0, 32)},
		NDescTx: 32, NDescRx: 32,
	}
	a.Tx[0].Users = 1
	a.Rx[0].Users = 1
	b := &Endpoint{
		RingPool: ringPool, BufPool: bufPool, Resolver: resolver,
		Tx: []*ring.Kring{ring.NewKring(api.DirTX, 0, 32)},
		Rx: []*ring.Kring{ring.NewKring(api.DirRX, 0, 32)},
		NDescTx: 32, NDescRx: 32,
	}
	b.Tx[0].Users = 1
	b.Rx[0].Users = 1
	return a, b
}

func TestKringsCreateCrossLinksSymmetrically(t *testing.T) {
	a, b := newTestEndpoints(t)
	if err := KringsCreate(a, b); err != nil {
		t.Fatalf("krings create: %v", err)
	}
	if !Linked(Pair{Tx: a.Tx, Rx: a.Rx}, Pair{Tx: b.Tx, Rx: b.Rx}) {
		t.Fatal("endpoints not symmetrically cross-linked")
	}
}

func TestKringsDeleteIdempotent(t *testing.T) {
	a, b := newTestEndpoints(t)
	if err := KringsCreate(a, b); err != nil {
		t.Fatalf("krings create: %v", err)
	}
	a.Tx[0].Users = 0
	a.Rx[0].Users = 0
	b.Tx[0].Users = 0
	b.Rx[0].Users = 0
	if err := KringsDelete(a, b); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := KringsDelete(a, b); err != nil {
		t.Fatalf("second delete (idempotent) should not error: %v", err)
	}
}

func TestTxSyncSwapsSlotsAndAdvancesIndices(t *testing.T) {
	a, b := newTestEndpoints(t)
	if err := KringsCreate(a, b); err != nil {
		t.Fatalf("krings create: %v", err)
	}
	tk := a.Tx[0]
	rk := tk.Peer()
	if rk == nil {
		t.Fatal("tx kring has no peer after cross-link")
	}
	tk.Rhead = 8
	n := TxSync(tk)
	if n != 8 {
		t.Fatalf("txsync swapped %d slots, want 8", n)
	}
	if tk.NrHwcur() != 8 {
		t.Fatalf("nr_hwcur = %d, want 8", tk.NrHwcur())
	}
	if rk.NrHwtail() != 8 {
		t.Fatalf("peer nr_hwtail = %d, want 8", rk.NrHwtail())
	}
}

func TestTxSyncNoPeerReturnsZero(t *testing.T) {
	tk := ring.NewKring(api.DirTX, 0, 32)
	if n := TxSync(tk); n != 0 {
		t.Fatalf("txsync with no ring/peer returned %d, want 0", n)
	}
}
