// File: ring/rings.go
// Author: momentics <momentics@gmail.com>
//
// rings_create / rings_delete: per-kring allocation of netmap_ring blocks
// from the RING pool plus per-slot buffer allocation from the BUF pool.

package ring

import (
	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/pool"
)

// RingsCreate allocates a netmap_ring (and its buffers) for every kring in
// krings that has users or the peer flag NEEDRING set and does not yet
// have a ring. ndesc is the slot count for real rings; the host ring (the
// last entry, when present) always gets a ring sized the same as the
// others but with fake buffers.
func RingsCreate(
	ringPool, bufPool *pool.Pool,
	resolver OffsetResolver,
	krings []*Kring,
	ndesc uint32,
	dir api.Dir,
	hostRing bool,
) error {
	var created []int
	for i, k := range krings {
		isHost := hostRing && i == len(krings)-1
		if k.Ring != nil {
			continue
		}
		if k.Users <= 0 && !k.NeedRing() {
			continue
		}
		if err := createOneRing(ringPool, bufPool, resolver, k, ndesc, dir, isHost); err != nil {
			// Roll back rings already created in this call.
			for _, j := range created {
				prior := krings[j]
				if !(hostRing && j == len(krings)-1) {
					for _, s := range prior.Ring.Slots() {
						if s.BufIdx >= api.NumReservedBufs {
							_ = bufPool.FreeByIndex(s.BufIdx)
						}
					}
				}
				_ = ringPool.FreeByAddress(prior.Ring.Base())
				prior.Ring = nil
			}
			return err
		}
		created = append(created, i)
	}
	return nil
}

func createOneRing(ringPool, bufPool *pool.Pool, resolver OffsetResolver, k *Kring, ndesc uint32, dir api.Dir, isHost bool) error {
	objsize, _ := ringPool.Info()
	need := RingBlockSize(ndesc)
	if int(objsize) < need {
		return api.NewError(api.ErrCodeInvalidConfig, "RING pool object size too small").
			WithContext("need", need).WithContext("objsize", objsize)
	}

	_, vaddr, err := ringPool.Allocate(-1)
	if err != nil {
		return err
	}
	nr := NewNetmapRing(vaddr, ndesc)
	nr.SetNumSlots(ndesc)
	nr.SetHead(k.Rhead)
	nr.SetCur(k.Rcur)
	nr.SetTail(k.Rtail)
	bufObjSize, _ := bufPool.Info()
	nr.SetNrBufSize(bufObjSize)
	nr.SetRingID(uint32(k.RingID))
	nr.SetDir(dir)

	bufBase := resolver.PoolBaseOffset(api.PoolBUF)
	ringGlobal, err := resolver.GlobalOffset(api.PoolRING, vaddr)
	if err != nil {
		_ = ringPool.FreeByAddress(vaddr)
		return err
	}
	nr.SetBufOfs(bufBase - ringGlobal)

	if isHost {
		for i := range nr.Slots() {
			nr.Slots()[i] = NetmapSlot{BufIdx: api.ReservedBufTX, Len: 0, Flags: 0}
		}
	} else {
		if err := newBufs(bufPool, nr.Slots(), bufObjSize); err != nil {
			_ = ringPool.FreeByAddress(vaddr)
			return err
		}
	}

	k.Ring = nr
	k.NumSlots = ndesc
	return nil
}

// rollbackScratch recycles the []uint32 slices newBufs uses to track
// already-allocated buffer indices during a ring fill, so repeated
// RingsCreate/RingsDelete cycles on the adapter attach/detach path don't
// churn the allocator for a purely transient bookkeeping slice.
var rollbackScratch = pool.NewSyncPool(func() []uint32 {
	return make([]uint32, 0, 64)
})

// newBufs allocates one BUF-pool object per slot, filling buf_idx and
// len. On failure it rolls back the buffers it already allocated in this
// ring.
func newBufs(bufPool *pool.Pool, slots []NetmapSlot, objsize uint32) error {
	allocated := rollbackScratch.Get()[:0]
	defer func() { rollbackScratch.Put(allocated) }()
	for i := range slots {
		idx, _, err := bufPool.Allocate(-1)
		if err != nil {
			for _, a := range allocated {
				_ = bufPool.FreeByIndex(a)
			}
			return err
		}
		allocated = append(allocated, idx)
		slots[i] = NetmapSlot{BufIdx: idx, Len: uint16(objsize), Flags: 0}
	}
	return nil
}

// RingsDelete frees the buffers and ring block of every kring in krings
// whose users == 0 and NEEDRING == 0; rings still referenced are kept so
// a peer can hold them alive.
func RingsDelete(ringPool, bufPool *pool.Pool, krings []*Kring, hostRing bool) error {
	for i, k := range krings {
		if k.Ring == nil {
			continue
		}
		if k.Users > 0 || k.NeedRing() {
			continue
		}
		isHost := hostRing && i == len(krings)-1
		if !isHost {
			for _, s := range k.Ring.Slots() {
				if s.BufIdx >= api.NumReservedBufs {
					_ = bufPool.FreeByIndex(s.BufIdx)
				}
			}
		}
		if err := ringPool.FreeByAddress(k.Ring.Base()); err != nil {
			return err
		}
		k.Ring = nil
	}
	return nil
}
