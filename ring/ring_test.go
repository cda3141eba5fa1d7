package ring

import (
	"testing"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/pool"
)

// fakeResolver gives ring package tests an OffsetResolver without
// depending on memdomain, keeping ring's own tests self-contained.
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

func newTestResolver(t *testing.T) (*fakeResolver, *pool.Pool, *pool.Pool, *pool.Pool) {
	t.Helper()
	alloc := pool.NewDefaultClusterAllocator()
	ifPool := pool.NewPool(api.PoolIF, alloc, -1)
	ringPool := pool.NewPool(api.PoolRING, alloc, -1)
	bufPool := pool.NewPool(api.PoolBUF, alloc, -1)

	if err := ifPool.Configure(1024, 8); err != nil {
		t.Fatalf("configure if: %v", err)
	}
	if err := ifPool.Finalize(); err != nil {
		t.Fatalf("finalize if: %v", err)
	}
	if err := ringPool.Configure(RingBlockSize(64), 8); err != nil {
		t.Fatalf("configure ring: %v", err)
	}
	if err := ringPool.Finalize(); err != nil {
		t.Fatalf("finalize ring: %v", err)
	}
	if err := bufPool.Configure(2048, 256); err != nil {
		t.Fatalf("configure buf: %v", err)
	}
	if err := bufPool.Finalize(); err != nil {
		t.Fatalf("finalize buf: %v", err)
	}

	r := &fakeResolver{
		base: map[api.PoolKind]int64{
			api.PoolIF:   0,
			api.PoolRING: int64(ifPool.MemTotal()),
			api.PoolBUF:  int64(ifPool.MemTotal() + ringPool.MemTotal()),
		},
		p: map[api.PoolKind]*pool.Pool{
			api.PoolIF: ifPool, api.PoolRING: ringPool, api.PoolBUF: bufPool,
		},
	}
	return r, ifPool, ringPool, bufPool
}

func TestIfNewThenRingsCreateProducesConsistentOffsets(t *testing.T) {
	resolver, ifPool, ringPool, bufPool := newTestResolver(t)

	txK := []*Kring{NewKring(api.DirTX, 0, 64)}
	rxK := []*Kring{NewKring(api.DirRX, 0, 64)}
	txK[0].Users = 1
	rxK[0].Users = 1

	if err := RingsCreate(ringPool, bufPool, resolver, txK, 64, api.DirTX, false); err != nil {
		t.Fatalf("rings create tx: %v", err)
	}
	if err := RingsCreate(ringPool, bufPool, resolver, rxK, 64, api.DirRX, false); err != nil {
		t.Fatalf("rings create rx: %v", err)
	}

	ifOfs, nif, err := IfNew(ifPool, resolver, "test0", 1, 1, false,
		Selection{QFirst: 0, QLast: 1}, Selection{QFirst: 0, QLast: 1}, txK, rxK)
	if err != nil {
		t.Fatalf("ifnew: %v", err)
	}
	_ = nif

	ringOfs := nif.RingOfs(4, 0)
	if ringOfs == 0 {
		t.Fatal("expected nonzero ring_ofs for selected tx ring 0")
	}

	// nifp + ring_ofs[0] + ring.buf_ofs + slot[0].buf_idx*bufobjsize must
	// land inside the BUF pool's memory range (spec §8 scenario E2).
	bufObjSize, _ := bufPool.Info()
	slot0 := txK[0].Ring.Slots()[0]
	bufOffsetInRegion := ifOfs + uint64(ringOfs) + uint64(txK[0].Ring.BufOfs()) + uint64(slot0.BufIdx)*uint64(bufObjSize)
	bufPoolBase := uint64(ifPool.MemTotal() + ringPool.MemTotal())
	bufPoolEnd := bufPoolBase + uint64(bufPool.MemTotal())
	if bufOffsetInRegion < bufPoolBase || bufOffsetInRegion >= bufPoolEnd {
		t.Fatalf("computed buf offset %d outside BUF pool range [%d,%d)", bufOffsetInRegion, bufPoolBase, bufPoolEnd)
	}
}

func TestRingsDeleteKeepsRingWhileNeeded(t *testing.T) {
	resolver, _, ringPool, bufPool := newTestResolver(t)
	k := NewKring(api.DirTX, 0, 64)
	k.Users = 1
	if err := RingsCreate(ringPool, bufPool, resolver, []*Kring{k}, 64, api.DirTX, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	k.Flags |= api.KringNeedRing
	k.Users = 0
	if err := RingsDelete(ringPool, bufPool, []*Kring{k}, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if k.Ring == nil {
		t.Fatal("ring freed while NEEDRING still set")
	}
	k.Flags &^= api.KringNeedRing
	if err := RingsDelete(ringPool, bufPool, []*Kring{k}, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if k.Ring != nil {
		t.Fatal("ring not freed once users==0 and NEEDRING cleared")
	}
}
