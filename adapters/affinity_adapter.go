// File: adapters/affinity_adapter.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter exposing the api.Affinity interface, backed by internal
//   concurrency primitives. This is the collaborator adapter.PinDriverContext
//   hands off to when a kring's txsync/rxsync must run pinned to the NUMA
//   node that backs its domain's BUF pool.

package adapters

import (
	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/internal/concurrency"
	"github.com/momentics/netmap/internal/normalize"
)

// AffinityAdapter implements api.Affinity by delegating to internal concurrency.
// pinCount tracks how many times Pin has succeeded on this adapter, for
// callers that want to surface it through control.MetricsRegistry.
type AffinityAdapter struct {
	currentCPU  int
	currentNUMA int
	pinned      bool
	pinCount    uint64
	scope       api.AffinityScope
}

// NewAffinityAdapter constructs a new AffinityAdapter scoped to a single
// OS thread, matching the granularity of a pinned txsync/rxsync worker.
func NewAffinityAdapter() api.Affinity {
	return NewScopedAffinityAdapter(api.ScopeThread)
}

// NewScopedAffinityAdapter constructs an AffinityAdapter bound to an
// explicit scope, e.g. api.ScopeGoroutine for a pool of equivalent
// softirq-context workers that share one NUMA placement but not one OS thread.
func NewScopedAffinityAdapter(scope api.AffinityScope) api.Affinity {
	return &AffinityAdapter{
		currentCPU:  -1,
		currentNUMA: -1,
		pinned:      false,
		scope:       scope,
	}
}

// Pin binds the current OS thread to cpuID and/or numaID, normalizing
// out-of-range or unset (-1) requests against the live topology rather
// than failing the kring sync call that depends on it.
func (a *AffinityAdapter) Pin(cpuID, numaID int) error {
	node := normalize.NUMANodeAuto(numaID)
	cpu := normalize.CPUIndexAuto(cpuID)

	if err := concurrency.PinCurrentThread(node, cpu); err != nil {
		return err
	}
	a.currentCPU = cpuID
	a.currentNUMA = numaID
	a.pinned = true
	a.pinCount++
	return nil
}

// Unpin releases any CPU/NUMA binding on this thread.
func (a *AffinityAdapter) Unpin() error {
	if err := concurrency.UnpinCurrentThread(); err != nil {
		return err
	}
	a.pinned = false
	a.currentCPU = -1
	a.currentNUMA = -1
	return nil
}

// Get returns the currently pinned CPU and NUMA node.
func (a *AffinityAdapter) Get() (cpuID, numaID int, err error) {
	return a.currentCPU, a.currentNUMA, nil
}

// Scope returns the binding scope (process, thread, or goroutine).
func (a *AffinityAdapter) Scope() api.AffinityScope {
	return a.scope
}

// PinCount returns the number of successful Pin calls on this adapter,
// useful for a control.MetricsRegistry "rebalance frequency" probe.
func (a *AffinityAdapter) PinCount() uint64 {
	return a.pinCount
}

// ImmutableDescriptor returns a snapshot of the current binding state.
func (a *AffinityAdapter) ImmutableDescriptor() api.AffinityDescriptor {
	return api.AffinityDescriptor{
		CPUID:  a.currentCPU,
		NUMAID: a.currentNUMA,
		Scope:  a.scope,
		Pinned: a.pinned,
	}
}
