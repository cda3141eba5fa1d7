package adapter

import (
	"errors"
	"testing"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/memdomain"
	"github.com/momentics/netmap/pipe"
	"github.com/momentics/netmap/pool"
	"github.com/momentics/netmap/ring"
)

func newTestDomain(t *testing.T) *memdomain.Global {
	t.Helper()
	d := memdomain.NewGlobal(pool.NewDefaultClusterAllocator(), -1)
	var params [api.NumPoolKinds]memdomain.PoolParams
	params[api.PoolIF] = memdomain.PoolParams{Size: 1024, Num: 8}
	params[api.PoolRING] = memdomain.PoolParams{Size: uint32(ring.RingBlockSize(64)), Num: 8}
	params[api.PoolBUF] = memdomain.PoolParams{Size: 2048, Num: 512}
	if err := d.Config(params); err != nil {
		t.Fatalf("config: %v", err)
	}
	if err := d.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return d
}

func TestAttachAdoptsIOMMUGroupOnce(t *testing.T) {
	d := newTestDomain(t)
	a := NewAdapter(1, d, 1, 1, 64, 64, false)
	a.Device.IOMMUGroup = 7
	if err := a.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if d.IOMMUGroup() != 7 {
		t.Fatalf("domain iommu group = %d, want 7", d.IOMMUGroup())
	}

	b := NewAdapter(2, d, 1, 1, 64, 64, false)
	b.Device.IOMMUGroup = 9
	if err := b.Attach(); !errors.Is(err, api.ErrGroupMismatch) {
		t.Fatalf("expected GroupMismatch attaching a second adapter with a different group, got %v", err)
	}
}

func TestDetachIsIdempotentAtZero(t *testing.T) {
	d := newTestDomain(t)
	a := NewAdapter(1, d, 1, 1, 64, 64, false)
	if err := a.Detach(); err != nil {
		t.Fatalf("detach at zero: %v", err)
	}
	if a.Refcount() != 0 {
		t.Fatalf("refcount = %d, want 0", a.Refcount())
	}
}

func TestIfNewAndRingsCreateRoundTrip(t *testing.T) {
	d := newTestDomain(t)
	a := NewAdapter(1, d, 1, 1, 64, 64, false)
	for _, k := range a.TxKrings {
		k.Users = 1
	}
	for _, k := range a.RxKrings {
		k.Users = 1
	}
	if err := a.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := a.IfNew("test0"); err != nil {
		t.Fatalf("ifnew: %v", err)
	}
	if err := a.RingsCreate(); err != nil {
		t.Fatalf("rings create: %v", err)
	}
	for _, k := range a.TxKrings {
		if k.Ring == nil {
			t.Fatal("tx ring not created")
		}
	}
	for _, k := range a.TxKrings {
		k.Users = 0
	}
	for _, k := range a.RxKrings {
		k.Users = 0
	}
	if err := a.RingsDelete(); err != nil {
		t.Fatalf("rings delete: %v", err)
	}
	for _, k := range a.TxKrings {
		if k.Ring != nil {
			t.Fatal("tx ring not released once users==0")
		}
	}
	if err := a.IfDelete(); err != nil {
		t.Fatalf("ifdelete: %v", err)
	}
}

func TestTwoAdaptersCrossLinkAndSync(t *testing.T) {
	d := newTestDomain(t)
	left := NewAdapter(1, d, 1, 1, 64, 64, false)
	right := NewAdapter(2, d, 1, 1, 64, 64, false)

	a := pipe.Endpoint{
		RingPool: d.Pool(api.PoolRING), BufPool: d.Pool(api.PoolBUF),
		Resolver: d, Tx: left.TxKrings, Rx: left.RxKrings,
		NDescTx: 64, NDescRx: 64,
	}
	b := pipe.Endpoint{
		RingPool: d.Pool(api.PoolRING), BufPool: d.Pool(api.PoolBUF),
		Resolver: d, Tx: right.TxKrings, Rx: right.RxKrings,
		NDescTx: 64, NDescRx: 64,
	}
	a.Tx[0].Users, a.Rx[0].Users = 1, 1
	b.Tx[0].Users, b.Rx[0].Users = 1, 1

	if err := pipe.KringsCreate(&a, &b); err != nil {
		t.Fatalf("krings create: %v", err)
	}
	left.TxKrings[0].Rhead = 4
	n := pipe.TxSync(left.TxKrings[0])
	if n != 4 {
		t.Fatalf("txsync swapped %d, want 4", n)
	}
}
