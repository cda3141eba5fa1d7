// File: memdomain/domain.go
// Author: momentics <momentics@gmail.com>
//
// Domain is a named bundle of the three fixed-order pools {IF, RING, BUF}
// with shared configuration, reference count, and a finalize/deref state
// machine. It implements the api.MemoryAllocator vtable; the two concrete
// variants are Global (this file) and Passthrough (passthrough.go).

package memdomain

import (
	"sync"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/pool"
)

// PoolParams is the caller-visible per-pool sizing request.
type PoolParams struct {
	Size uint32
	Num  uint32
}

// Global is the owning memory domain: it allocates its own clusters
// through pool.ClusterAllocator and keeps the authoritative lut/bitmap
// state for all three pools.
type Global struct {
	mu sync.Mutex

	id     uint16
	flags  api.DomainFlags
	refcnt int
	active int

	iommuGroup int // -1 = unassigned

	params  [api.NumPoolKinds]PoolParams
	pools   [api.NumPoolKinds]*pool.Pool
	lasterr error

	alloc    pool.ClusterAllocator
	numaNode int

	nmTotalSize uint64

	prev, next *Global // registry circular list links
}

// NewGlobal constructs an unconfigured, unfinalized global domain with
// refcount 1, owned by the caller of registry.Register.
func NewGlobal(alloc pool.ClusterAllocator, numaNode int) *Global {
	d := &Global{
		refcnt:     1,
		iommuGroup: -1,
		alloc:      alloc,
		numaNode:   numaNode,
	}
	for k := 0; k < api.NumPoolKinds; k++ {
		d.pools[k] = pool.NewPool(api.PoolKind(k), alloc, numaNode)
	}
	return d
}

// ID returns the domain's process-unique 16-bit identifier.
func (d *Global) ID() uint16 { return d.id }

// SetID is called once by the registry at registration time.
func (d *Global) SetID(id uint16) { d.id = id }

// Flags returns the current domain flags.
func (d *Global) Flags() api.DomainFlags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags
}

// Refcount returns the current reference count.
func (d *Global) Refcount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refcnt
}

// Active returns the current active-user count.
func (d *Global) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Get increments the reference count (registry lookup path).
func (d *Global) Get() {
	d.mu.Lock()
	d.refcnt++
	d.mu.Unlock()
}

// Put decrements the reference count and reports whether it reached zero.
func (d *Global) Put() (deleted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refcnt--
	return d.refcnt <= 0
}

// Pool returns the pool of the given kind.
func (d *Global) Pool(kind api.PoolKind) *pool.Pool {
	return d.pools[kind]
}

// Config re-reads the caller-visible params. If params are unchanged, it
// returns the last error; if they changed while the domain has active
// users, it returns ErrBusy. In both cases no pool is touched.
func (d *Global) Config(params [api.NumPoolKinds]PoolParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if params == d.params {
		return d.lasterr
	}
	if d.active > 0 {
		return api.ErrBusy
	}

	if d.flags&api.DomainFinalized != 0 {
		for _, p := range d.pools {
			p.Reset()
		}
		d.flags &^= api.DomainFinalized
	}

	for k, prm := range params {
		if err := d.pools[k].Configure(int(prm.Size), int(prm.Num)); err != nil {
			d.lasterr = err
			return err
		}
	}
	d.params = params
	d.lasterr = nil
	return nil
}

// ConfigOne is a convenience for configuring a single pool kind without
// disturbing the others' last-requested params.
func (d *Global) ConfigOne(kind api.PoolKind, size, num uint32) error {
	d.mu.Lock()
	params := d.params
	d.mu.Unlock()
	params[kind] = PoolParams{Size: size, Num: num}
	return d.Config(params)
}

// Finalize runs config's result check: if not already finalized, it
// finalizes each pool in order, computes nm_totalsize, and sets
// DomainFinalized. Active is incremented on success.
func (d *Global) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lasterr != nil {
		return d.lasterr
	}
	if d.flags&api.DomainFinalized != 0 {
		d.active++
		return nil
	}

	var total uint64
	for _, p := range d.pools {
		if err := p.Finalize(); err != nil {
			for _, q := range d.pools {
				q.Reset()
			}
			d.lasterr = err
			return err
		}
		total += uint64(p.MemTotal())
	}
	d.nmTotalSize = total
	d.flags |= api.DomainFinalized
	d.active++
	return nil
}

// TotalSize returns the finalized shared-region size (sum of pool memtotal).
func (d *Global) TotalSize() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nmTotalSize
}

// Deref decrements active. When active falls to 1, bitmaps are re-init'd
// so leaked allocations from any unclean exit are reclaimed. When active
// reaches 0, the IOMMU group is cleared so a differently-grouped adapter
// may attach next time. The domain itself is not freed here.
func (d *Global) Deref() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == 0 {
		return nil
	}
	d.active--
	if d.active == 1 {
		for _, p := range d.pools {
			if err := p.InitBitmap(); err != nil {
				return err
			}
		}
	}
	if d.active == 0 {
		d.iommuGroup = -1
	}
	return nil
}

// AdoptIOMMUGroup assigns the domain's IOMMU group on first attach, or
// verifies equality on subsequent attach from a different adapter.
func (d *Global) AdoptIOMMUGroup(group int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.iommuGroup == -1 {
		d.iommuGroup = group
		return nil
	}
	if d.iommuGroup != group {
		return api.NewError(api.ErrCodeGroupMismatch, "adapter IOMMU group differs from domain group").
			WithContext("domain_group", d.iommuGroup).WithContext("adapter_group", group)
	}
	return nil
}

// IOMMUGroup reports the currently adopted group, or -1 if unassigned.
func (d *Global) IOMMUGroup() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iommuGroup
}

// GetLut implements api.MemoryAllocator.
func (d *Global) GetLut(kind api.PoolKind) ([]api.LutEntry, error) {
	d.mu.Lock()
	finalized := d.flags&api.DomainFinalized != 0
	d.mu.Unlock()
	if !finalized {
		return nil, api.ErrNotFinalized
	}
	p := d.pools[kind]
	n, _ := p.Info()
	_ = n
	lut := make([]api.LutEntry, 0)
	for i := 0; ; i++ {
		e, err := p.LutEntryAt(uint32(i))
		if err != nil {
			break
		}
		lut = append(lut, e)
	}
	return lut, nil
}

// GetInfo implements api.MemoryAllocator.
func (d *Global) GetInfo(kind api.PoolKind) (objsize, objtotal uint32, err error) {
	objsize, objtotal = d.pools[kind].Info()
	return objsize, objtotal, nil
}

// OffsetToPhys resolves a global offset (summed across pools in IF|RING|BUF
// order) to a physical address stand-in.
func (d *Global) OffsetToPhys(offset uint64) (uintptr, error) {
	var base uint64
	for k := 0; k < api.NumPoolKinds; k++ {
		p := d.pools[k]
		mt := uint64(p.MemTotal())
		if offset < base+mt {
			within := offset - base
			vaddr, err := d.poolVAddrFromOffset(api.PoolKind(k), within)
			if err != nil {
				return 0, err
			}
			return vaddr, nil
		}
		base += mt
	}
	return 0, api.ErrBadOffset
}

func (d *Global) poolVAddrFromOffset(kind api.PoolKind, within uint64) (uintptr, error) {
	p := d.pools[kind]
	// Resolve by scanning lut entries' pool-relative offsets; OffsetOf's
	// inverse is implemented by linear probe since Pool does not expose
	// cluster internals directly to callers outside package pool.
	for i := 0; ; i++ {
		e, err := p.LutEntryAt(uint32(i))
		if err != nil {
			break
		}
		off, err := p.OffsetOf(e.Vaddr)
		if err == nil && off == within {
			return e.Vaddr, nil
		}
	}
	return 0, api.ErrBadOffset
}

// GlobalOffset resolves a virtual address known to live in pool kind's
// backing clusters to its offset within the combined IF|RING|BUF shared
// region, for use by the ring package when computing ring_ofs/buf_ofs.
func (d *Global) GlobalOffset(kind api.PoolKind, vaddr uintptr) (int64, error) {
	within, err := d.pools[kind].OffsetOf(vaddr)
	if err != nil {
		return 0, err
	}
	return d.PoolBaseOffset(kind) + int64(within), nil
}

// PoolBaseOffset returns the offset of pool kind's first byte within the
// combined IF|RING|BUF shared region.
func (d *Global) PoolBaseOffset(kind api.PoolKind) int64 {
	var base uint64
	for k := 0; k < int(kind); k++ {
		base += uint64(d.pools[k].MemTotal())
	}
	return int64(base)
}

// Delete releases the domain's pools. Only meaningful once refcount has
// reached zero; registry.Release calls it at that point.
func (d *Global) Delete() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pools {
		p.Reset()
	}
	return nil
}

var _ api.MemoryAllocator = (*Global)(nil)

// Global, together with the ring package's IfNew/RingsCreate/RingsDelete
// (which it feeds via Pool and the OffsetResolver methods above) and
// adapter.Adapter (which owns per-interface kring state), jointly realize
// the api.MemoryAllocator capability set described in the design notes.
// The krings themselves belong to the adapter, not the domain, so the
// per-adapter operations (if_new, rings_create/delete) are orchestrated
// from package adapter rather than implemented directly on Global.
