// File: ring/ifnew.go
// Author: momentics <momentics@gmail.com>
//
// if_new: allocates a netmap_if block from the IF pool and populates its
// ring_ofs[] array from already-materialized krings.

package ring

import (
	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/pool"
)

// OffsetResolver resolves a pool-local virtual address to its offset
// within the combined IF|RING|BUF shared region. memdomain.Global
// implements this; ring does not import memdomain to avoid a cycle.
type OffsetResolver interface {
	GlobalOffset(kind api.PoolKind, vaddr uintptr) (int64, error)
	PoolBaseOffset(kind api.PoolKind) int64
}

// Selection names the half-open range [QFirst, QLast) of ring indices a
// client selected for one direction.
type Selection struct {
	QFirst, QLast uint32
}

// IfNew allocates sizeof(netmap_if)+(ntx+1+nrx+1)*offset from the IF
// pool, writes name and ring counts, and fills ring_ofs[i] with the
// offset of krings[i].Ring from the netmap_if itself (ring global offset
// minus netmap_if global offset), or 0 if i falls outside the client's
// selection or the kring has no ring yet.
func IfNew(
	ifPool *pool.Pool,
	resolver OffsetResolver,
	name string,
	ntx, nrx uint32,
	hostRings bool,
	txSel, rxSel Selection,
	txKrings, rxKrings []*Kring,
) (ifOffset uint64, nif *NetmapIf, err error) {
	objsize, _ := ifPool.Info()
	need := IfBlockSize(ntx, nrx)
	if int(objsize) < need {
		return 0, nil, api.NewError(api.ErrCodeInvalidConfig, "IF pool object size too small for ring_ofs array").
			WithContext("need", need).WithContext("objsize", objsize)
	}

	_, vaddr, err := ifPool.Allocate(-1)
	if err != nil {
		return 0, nil, err
	}

	nif = NewNetmapIf(vaddr, int(objsize))
	nif.SetName(name)
	nif.SetRingCounts(ntx, nrx)
	nif.SetBufsHead(0)

	ifGlobalOfs, err := resolver.GlobalOffset(api.PoolIF, vaddr)
	if err != nil {
		return 0, nil, err
	}

	numOfs := int(ntx+1) + int(nrx+1)

	writeOfs := func(idx int, k *Kring, sel Selection, hostIdx int, ringIdx uint32) {
		if k == nil || k.Ring == nil {
			nif.SetRingOfs(numOfs, idx, 0)
			return
		}
		inSel := ringIdx >= sel.QFirst && ringIdx < sel.QLast
		if idx == hostIdx && !hostRings {
			nif.SetRingOfs(numOfs, idx, 0)
			return
		}
		if !inSel && idx != hostIdx {
			nif.SetRingOfs(numOfs, idx, 0)
			return
		}
		ringGlobalOfs, rerr := resolver.GlobalOffset(api.PoolRING, k.Ring.Base())
		if rerr != nil {
			nif.SetRingOfs(numOfs, idx, 0)
			return
		}
		nif.SetRingOfs(numOfs, idx, ringGlobalOfs-ifGlobalOfs)
	}

	txHostIdx := int(ntx)
	for i := 0; i < int(ntx); i++ {
		var k *Kring
		if i < len(txKrings) {
			k = txKrings[i]
		}
		writeOfs(i, k, txSel, txHostIdx, uint32(i))
	}
	if len(txKrings) > int(ntx) {
		writeOfs(txHostIdx, txKrings[ntx], txSel, txHostIdx, ntx)
	} else {
		nif.SetRingOfs(numOfs, txHostIdx, 0)
	}

	rxBase := int(ntx) + 1
	rxHostIdx := rxBase + int(nrx)
	for i := 0; i < int(nrx); i++ {
		var k *Kring
		if i < len(rxKrings) {
			k = rxKrings[i]
		}
		writeOfs(rxBase+i, k, rxSel, rxHostIdx, uint32(i))
	}
	if len(rxKrings) > int(nrx) {
		writeOfs(rxHostIdx, rxKrings[nrx], rxSel, rxHostIdx, nrx)
	} else {
		nif.SetRingOfs(numOfs, rxHostIdx, 0)
	}

	ifOffset = uint64(ifGlobalOfs)
	return ifOffset, nif, nil
}

// IfDelete releases a netmap_if block previously allocated by IfNew.
func IfDelete(ifPool *pool.Pool, nif *NetmapIf) error {
	return ifPool.FreeByAddress(nif.Base())
}
