// File: registry/registry.go
// Author: momentics <momentics@gmail.com>
//
// Registry is the process-wide circular list of all memory domains keyed
// by a 16-bit id, with unique-id assignment, lookup, and release. A
// single package-level Default() instance is seeded with the sentinel
// global domain (id=1), matching spec §4.3 and scenario E6.

package registry

import (
	"sync"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/internal/concurrency"
	"github.com/momentics/netmap/memdomain"
	"github.com/momentics/netmap/pool"
)

// Domain is the subset of memdomain.Global (or any other owning domain
// implementation) the registry needs: identity, flags, and refcounting.
// memdomain.Global satisfies this interface.
type Domain interface {
	ID() uint16
	SetID(uint16)
	Flags() api.DomainFlags
	Get()
	Put() bool
}

// entry is one circular-list node.
type entry struct {
	id     uint16
	domain Domain
	prev   *entry
	next   *entry
}

// Registry is the process-wide circular doubly-linked domain list.
type Registry struct {
	mu sync.Mutex

	byID map[uint16]*entry
	last *entry // most-recently assigned id's entry; id-scan starts here

	// freedIDs is a lock-free accelerator over the authoritative circular
	// gap scan: assignID first tries this cache, falling back to the scan
	// when it is empty or its hint is stale, the same layering pool.Pool
	// uses for a lock-free queue over an authoritative bitmap (Get/Put).
	freedIDs *concurrency.LockFreeQueue[uint16]
}

const (
	reservedIDZero   = 0
	sentinelGlobalID = 1
	maxID            = 0xFFFF
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, seeded with the sentinel
// global domain on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
		sentinel := memdomain.NewGlobal(pool.NewDefaultClusterAllocator(), -1)
		sentinel.SetID(sentinelGlobalID)
		e := &entry{id: sentinelGlobalID, domain: sentinel}
		e.prev, e.next = e, e
		defaultReg.byID[sentinelGlobalID] = e
		defaultReg.last = e
	})
	return defaultReg
}

// New constructs an empty registry (tests use this to avoid sharing
// state with Default()).
func New() *Registry {
	return &Registry{
		byID:     make(map[uint16]*entry),
		freedIDs: concurrency.NewLockFreeQueue[uint16](1024),
	}
}

// Register assigns a unique, nonzero 16-bit id to d and links it into the
// circular list. Returns ErrOutOfMemory if the id space is exhausted
// (scenario E6: the 2^16-th create must fail).
func (r *Registry) Register(d Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.assignIDLocked()
	if err != nil {
		return err
	}
	d.SetID(id)
	e := &entry{id: id, domain: d}
	if r.last == nil {
		e.prev, e.next = e, e
	} else {
		e.prev = r.last
		e.next = r.last.next
		r.last.next.prev = e
		r.last.next = e
	}
	r.byID[id] = e
	r.last = e
	return nil
}

// assignIDLocked first takes an id from the freed-id cache if one is
// cached and still unassigned; only when the cache yields nothing does it
// walk the list from the last-used domain and pick the first gap in the
// wrap-around sequence, skipping id 0 (reserved for error). A recently
// released id is therefore reused ahead of the first gap after the
// last-used id. Caller holds r.mu.
func (r *Registry) assignIDLocked() (uint16, error) {
	if len(r.byID) >= maxID {
		return 0, api.ErrOutOfMemory
	}

	for {
		hint, ok := r.freedIDs.Dequeue()
		if !ok {
			break
		}
		if hint == reservedIDZero {
			continue
		}
		if _, taken := r.byID[hint]; !taken {
			return hint, nil
		}
		// Stale hint (id was reassigned by the scan already); discard.
	}

	start := uint16(sentinelGlobalID)
	if r.last != nil {
		start = r.last.id
	}
	for i := 1; i <= maxID; i++ {
		candidate := uint16((int(start) + i) % (maxID + 1))
		if candidate == reservedIDZero {
			continue
		}
		if _, taken := r.byID[candidate]; !taken {
			return candidate, nil
		}
	}
	return 0, api.ErrOutOfMemory
}

// Lookup returns the domain for id with its reference count incremented,
// unless it is HIDDEN, in which case it behaves as not found.
func (r *Registry) Lookup(id uint16) (Domain, error) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil, api.ErrPeerNotFound
	}
	if e.domain.Flags()&api.DomainHidden != 0 {
		return nil, api.ErrPeerNotFound
	}
	e.domain.Get()
	return e.domain, nil
}

// Release decrements the domain's reference count and, if it reaches
// zero, removes it from the list and deletes it.
func (r *Registry) Release(id uint16) error {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return api.ErrPeerNotFound
	}

	if !e.domain.Put() {
		return nil
	}

	r.mu.Lock()
	r.unlinkLocked(e)
	r.freedIDs.Enqueue(id)
	r.mu.Unlock()
	if del, ok := e.domain.(interface{ Delete() error }); ok {
		return del.Delete()
	}
	return nil
}

func (r *Registry) unlinkLocked(e *entry) {
	delete(r.byID, e.id)
	if e.next == e {
		r.last = nil
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	if r.last == e {
		r.last = e.prev
	}
}

// Len reports the number of domains currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
