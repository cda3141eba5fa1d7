package adapters_test

import (
	"testing"

	"github.com/momentics/netmap/adapters"
	"github.com/momentics/netmap/api"
)

func TestAffinityAdapterPinUnpin(t *testing.T) {
	a := adapters.NewAffinityAdapter()
	if err := a.Pin(0, 0); err != nil {
		t.Fatalf("pin: %v", err)
	}
	cpu, numa, err := a.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cpu != 0 || numa != 0 {
		t.Fatalf("get = (%d,%d), want (0,0)", cpu, numa)
	}
	desc := a.ImmutableDescriptor()
	if !desc.Pinned {
		t.Fatal("descriptor should report pinned")
	}
	if err := a.Unpin(); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if a.ImmutableDescriptor().Pinned {
		t.Fatal("descriptor should report unpinned after Unpin")
	}
}

func TestAffinityAdapterScope(t *testing.T) {
	a := adapters.NewAffinityAdapter()
	if a.Scope() != api.ScopeThread {
		t.Fatalf("default scope = %v, want ScopeThread", a.Scope())
	}
}
