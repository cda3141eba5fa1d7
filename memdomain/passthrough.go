// File: memdomain/passthrough.go
// Author: momentics <momentics@gmail.com>
//
// Passthrough implements the same operations vtable as Global but over an
// already-mapped remote region (standing in for a PCI BAR), demonstrating
// that the allocator interface cleanly abstracts both owning and
// non-owning memory. Configure is a no-op; Finalize reads geometry from
// the supplied BARInfo instead of allocating clusters.

package memdomain

import (
	"sync"

	"github.com/momentics/netmap/api"
)

// BARInfo describes the host-owned region a passthrough domain maps.
type BARInfo struct {
	BasePAddr  uintptr
	BaseVAddr  uintptr
	BufSize    uint32
	BufCount   uint32
	PoolOffset uint64 // offset of the BUF-equivalent region within the BAR
}

// Passthrough is the guest-side variant: it never owns cluster memory,
// only a lut computed from a host-supplied base address and stride.
type Passthrough struct {
	mu sync.Mutex

	id    uint16
	flags api.DomainFlags

	bar         BARInfo
	lut         []api.LutEntry
	nmTotalSize uint64

	// ifOffsets maps an adapter id to its nifp_offset within the BAR,
	// maintained by explicit AddIfOffset/DelIfOffset calls from the
	// guest/host handshake (out of scope to implement in full here).
	ifOffsets map[uint32]uint64
}

// NewPassthrough constructs an unfinalized passthrough domain over bar.
func NewPassthrough(bar BARInfo) *Passthrough {
	return &Passthrough{
		bar:       bar,
		ifOffsets: make(map[uint32]uint64),
	}
}

func (d *Passthrough) ID() uint16     { return d.id }
func (d *Passthrough) SetID(id uint16) { d.id = id }

// Config is a no-op: passthrough geometry comes entirely from the BAR.
func (d *Passthrough) Config() error { return nil }

// Finalize builds a lut from the BAR's buffer size/count/stride and
// computes nm_totalsize from it.
func (d *Passthrough) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flags&api.DomainFinalized != 0 {
		return nil
	}
	if d.bar.BufCount == 0 || d.bar.BufSize == 0 {
		return api.NewError(api.ErrCodeInvalidConfig, "passthrough BAR has zero buffer size or count")
	}
	d.lut = make([]api.LutEntry, d.bar.BufCount)
	for i := uint32(0); i < d.bar.BufCount; i++ {
		vaddr := d.bar.BaseVAddr + uintptr(i)*uintptr(d.bar.BufSize)
		paddr := d.bar.BasePAddr + uintptr(i)*uintptr(d.bar.BufSize)
		d.lut[i] = api.LutEntry{Vaddr: vaddr, Paddr: paddr}
	}
	d.nmTotalSize = uint64(d.bar.BufCount) * uint64(d.bar.BufSize)
	d.flags |= api.DomainFinalized
	return nil
}

// GetLut implements api.MemoryAllocator.
func (d *Passthrough) GetLut(kind api.PoolKind) ([]api.LutEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flags&api.DomainFinalized == 0 {
		return nil, api.ErrNotFinalized
	}
	if kind != api.PoolBUF {
		return nil, nil
	}
	return d.lut, nil
}

// GetInfo implements api.MemoryAllocator.
func (d *Passthrough) GetInfo(kind api.PoolKind) (objsize, objtotal uint32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind != api.PoolBUF {
		return 0, 0, nil
	}
	return d.bar.BufSize, d.bar.BufCount, nil
}

// OffsetToPhys is base_paddr + offset.
func (d *Passthrough) OffsetToPhys(offset uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset >= d.nmTotalSize {
		return 0, api.ErrBadOffset
	}
	return d.bar.BasePAddr + uintptr(offset), nil
}

// Deref is a no-op: the guest never owns the backing region's lifecycle.
func (d *Passthrough) Deref() error { return nil }

// Delete drops the guest's pointers without touching host-owned memory.
// Per the design's resolved open question, this is intentional: the
// backing ring and buffers belong to the host.
func (d *Passthrough) Delete() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lut = nil
	d.flags &^= api.DomainFinalized
	return nil
}

// AddIfOffset records the nifp_offset the host assigned to adapterID.
func (d *Passthrough) AddIfOffset(adapterID uint32, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ifOffsets[adapterID] = offset
}

// DelIfOffset removes a previously recorded nifp_offset.
func (d *Passthrough) DelIfOffset(adapterID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ifOffsets, adapterID)
}

// IfOffset looks up adapterID's nifp_offset within the BAR.
func (d *Passthrough) IfOffset(adapterID uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	off, ok := d.ifOffsets[adapterID]
	if !ok {
		return 0, api.ErrPeerNotFound
	}
	return off, nil
}

var _ api.MemoryAllocator = (*Passthrough)(nil)
