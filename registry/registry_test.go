package registry

import (
	"errors"
	"testing"

	"github.com/momentics/netmap/api"
)

// fakeDomain is a minimal Domain for registry tests, independent of
// memdomain's heavier pool machinery.
type fakeDomain struct {
	id      uint16
	flags   api.DomainFlags
	refcnt  int
}

func (d *fakeDomain) ID() uint16            { return d.id }
func (d *fakeDomain) SetID(id uint16)       { d.id = id }
func (d *fakeDomain) Flags() api.DomainFlags { return d.flags }
func (d *fakeDomain) Get()                  { d.refcnt++ }
func (d *fakeDomain) Put() bool             { d.refcnt--; return d.refcnt <= 0 }

func TestRegisterAssignsDistinctNonzeroIDs(t *testing.T) {
	r := New()
	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		d := &fakeDomain{refcnt: 1}
		if err := r.Register(d); err != nil {
			t.Fatalf("register: %v", err)
		}
		if d.id == 0 {
			t.Fatal("assigned reserved id 0")
		}
		if seen[d.id] {
			t.Fatalf("duplicate id %d", d.id)
		}
		seen[d.id] = true
	}
}

func TestLookupHiddenDomainNotFound(t *testing.T) {
	r := New()
	d := &fakeDomain{refcnt: 1, flags: api.DomainHidden}
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Lookup(d.id); !errors.Is(err, api.ErrPeerNotFound) {
		t.Fatalf("expected PeerNotFound for hidden domain, got %v", err)
	}
}

func TestReleaseUnlinksAtZeroRefcount(t *testing.T) {
	r := New()
	d := &fakeDomain{refcnt: 1}
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Release(d.id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := r.Lookup(d.id); !errors.Is(err, api.ErrPeerNotFound) {
		t.Fatalf("expected PeerNotFound after release, got %v", err)
	}
}

func TestReleaseKeepsDomainWhileReferenced(t *testing.T) {
	r := New()
	d := &fakeDomain{refcnt: 1}
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Lookup(d.id); err != nil {
		t.Fatalf("lookup: %v", err)
	} // refcnt now 2
	if err := r.Release(d.id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := r.Lookup(d.id); err != nil {
		t.Fatalf("expected domain still present after one of two releases: %v", err)
	}
}

func TestFreedIDIsReusable(t *testing.T) {
	r := New()
	d1 := &fakeDomain{refcnt: 1}
	if err := r.Register(d1); err != nil {
		t.Fatalf("register d1: %v", err)
	}
	freedID := d1.id
	if err := r.Release(freedID); err != nil {
		t.Fatalf("release: %v", err)
	}
	d2 := &fakeDomain{refcnt: 1}
	if err := r.Register(d2); err != nil {
		t.Fatalf("register d2: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", r.Len())
	}
	if d2.id != freedID {
		t.Fatalf("d2 id = %d, want reused id %d", d2.id, freedID)
	}
}
