package pool

import (
	"testing"

	"github.com/momentics/netmap/api"
)

func newTestBufPool(t *testing.T, objsize, objtotal int) *Pool {
	t.Helper()
	p := NewPool(api.PoolBUF, NewDefaultClusterAllocator(), -1)
	if err := p.Configure(objsize, objtotal); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return p
}

func TestConfigureRejectsOutOfBoundsSize(t *testing.T) {
	p := NewPool(api.PoolBUF, NewDefaultClusterAllocator(), -1)
	if err := p.Configure(1<<17, 100); err == nil {
		t.Fatal("expected error for objsize above maximum")
	}
	if err := p.Configure(2048, 1); err == nil {
		t.Fatal("expected error for objtotal below minimum (reserved bufs)")
	}
}

func TestReservedBufIndicesNeverAllocatedOrFreed(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	for i := 0; i < 200; i++ {
		idx, _, err := p.Allocate(0)
		if err != nil {
			break
		}
		if idx == api.ReservedBufTX || idx == api.ReservedBufRX {
			t.Fatalf("allocated reserved index %d", idx)
		}
	}
	if err := p.FreeByIndex(api.ReservedBufTX); err == nil {
		t.Fatal("expected error freeing reserved index 0")
	}
	if err := p.FreeByIndex(api.ReservedBufRX); err == nil {
		t.Fatal("expected error freeing reserved index 1")
	}
}

func TestDoubleFreeDetected(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	idx, _, err := p.Allocate(0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := p.FreeByIndex(idx); err != nil {
		t.Fatalf("first free: %v", err)
	}
	if err := p.FreeByIndex(idx); err == nil {
		t.Fatal("expected double-free error")
	}
}

func TestAllocateExhaustionReturnsOutOfMemory(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	allocated := 0
	for {
		if _, _, err := p.Allocate(0); err != nil {
			break
		}
		allocated++
		if allocated > 1000 {
			t.Fatal("allocate never exhausted")
		}
	}
	if _, _, err := p.Allocate(0); err == nil {
		t.Fatal("expected OutOfMemory once exhausted")
	}
}

func TestFreeByAddressRoundTrips(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	idx, vaddr, err := p.Allocate(0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	_ = idx
	if err := p.FreeByAddress(vaddr); err != nil {
		t.Fatalf("free by address: %v", err)
	}
}

func TestFastFreeAcceleratesReuse(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	idx, _, err := p.Allocate(0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	before := p.ObjFree()
	if err := p.FreeByIndex(idx); err != nil {
		t.Fatalf("free: %v", err)
	}
	if p.ObjFree() != before+1 {
		t.Fatalf("objfree did not increment: got %d want %d", p.ObjFree(), before+1)
	}
	idx2, _, err := p.Allocate(0)
	if err != nil {
		t.Fatalf("re-allocate: %v", err)
	}
	if idx2 != idx {
		t.Fatalf("fast-free path did not return the just-freed index: got %d want %d", idx2, idx)
	}
}

func TestResetReleasesClustersAndClearsState(t *testing.T) {
	p := newTestBufPool(t, 2048, 64)
	p.Reset()
	if p.ObjFree() != 0 || p.NumClusters() != 0 || p.MemTotal() != 0 {
		t.Fatalf("reset left non-zero state: objfree=%d clusters=%d memtotal=%d", p.ObjFree(), p.NumClusters(), p.MemTotal())
	}
	if _, _, err := p.Allocate(0); err == nil {
		t.Fatal("expected NotFinalized error after reset")
	}
}
