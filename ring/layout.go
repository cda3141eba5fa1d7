// File: ring/layout.go
// Author: momentics <momentics@gmail.com>
//
// Bit-exact overlay of netmap_if / netmap_ring / netmap_slot onto pool-
// allocated memory. Each type here is a thin handle over bytes owned by a
// pool.Pool object slot; field accessors read/write through unsafe
// pointers so that the in-memory layout matches the shared-memory ABI
// spec §6 describes, rather than being a detached Go-side mirror.

package ring

import (
	"unsafe"

	"github.com/momentics/netmap/api"
)

// ifRawHeader is the fixed header of netmap_if. ring_ofs[] follows
// immediately in memory as an array of int64 offsets.
type ifRawHeader struct {
	Name     [api.IfNameSize]byte
	NTxRings uint32
	NRxRings uint32
	BufsHead uint32
	_        uint32 // padding to keep ring_ofs 8-byte aligned
}

// NetmapIf is a handle over one netmap_if block drawn from the IF pool.
type NetmapIf struct {
	base     uintptr
	capBytes int
}

func ifHeaderSize() int { return int(unsafe.Sizeof(ifRawHeader{})) }

// IfBlockSize returns the number of bytes an IfNew call for the given ring
// counts requires, including the trailing ring_ofs array (+1 host ring
// per direction).
func IfBlockSize(ntx, nrx uint32) int {
	numOfs := int(ntx+1) + int(nrx+1)
	return ifHeaderSize() + numOfs*8
}

// NewNetmapIf constructs a handle over an already-allocated block of at
// least IfBlockSize(ntx, nrx) bytes at vaddr.
func NewNetmapIf(vaddr uintptr, capBytes int) *NetmapIf {
	return &NetmapIf{base: vaddr, capBytes: capBytes}
}

func (n *NetmapIf) header() *ifRawHeader {
	return (*ifRawHeader)(unsafe.Pointer(n.base))
}

// Base returns the netmap_if's own virtual address.
func (n *NetmapIf) Base() uintptr { return n.base }

// SetName copies name (truncated to IfNameSize-1) into ni_name.
func (n *NetmapIf) SetName(name string) {
	h := n.header()
	var buf [api.IfNameSize]byte
	copy(buf[:api.IfNameSize-1], name)
	h.Name = buf
}

// SetRingCounts writes ni_tx_rings / ni_rx_rings.
func (n *NetmapIf) SetRingCounts(ntx, nrx uint32) {
	h := n.header()
	h.NTxRings = ntx
	h.NRxRings = nrx
}

// RingCounts reads back ni_tx_rings / ni_rx_rings.
func (n *NetmapIf) RingCounts() (ntx, nrx uint32) {
	h := n.header()
	return h.NTxRings, h.NRxRings
}

// SetBufsHead / BufsHead manage the optional extra-buffer freelist head.
func (n *NetmapIf) SetBufsHead(v uint32) { n.header().BufsHead = v }
func (n *NetmapIf) BufsHead() uint32     { return n.header().BufsHead }

// ringOfsSlice returns the trailing ring_ofs[] array as a Go slice
// overlaying the bytes immediately after the fixed header.
func (n *NetmapIf) ringOfsSlice(numOfs int) []int64 {
	start := n.base + uintptr(ifHeaderSize())
	return unsafe.Slice((*int64)(unsafe.Pointer(start)), numOfs)
}

// SetRingOfs writes ring_ofs[k] = ofs (offset from nifp base to the ring,
// 0 meaning "not selected"/invalid for this client).
func (n *NetmapIf) SetRingOfs(numOfs, k int, ofs int64) {
	n.ringOfsSlice(numOfs)[k] = ofs
}

// RingOfs reads ring_ofs[k].
func (n *NetmapIf) RingOfs(numOfs, k int) int64 {
	return n.ringOfsSlice(numOfs)[k]
}

// netmapRingRaw is the fixed header of netmap_ring. netmap_slot[num_slots]
// follows immediately in memory.
type netmapRingRaw struct {
	NumSlots  uint32
	_         uint32 // padding
	BufOfs    int64
	Head      uint32
	Cur       uint32
	Tail      uint32
	NrBufSize uint32
	RingID    uint32
	Dir       uint32
	_         uint32 // padding
}

// NetmapSlot is {buf_idx, len, flags} exactly per spec §6.
type NetmapSlot struct {
	BufIdx uint32
	Len    uint16
	Flags  uint16
}

func ringHeaderSize() int { return int(unsafe.Sizeof(netmapRingRaw{})) }

// RingBlockSize returns the bytes a netmap_ring with numSlots descriptors
// occupies, header plus the slot array.
func RingBlockSize(numSlots uint32) int {
	return ringHeaderSize() + int(numSlots)*int(unsafe.Sizeof(NetmapSlot{}))
}

// NetmapRing is a handle over one netmap_ring block drawn from the RING
// pool, with its netmap_slot array and backing BUF pool reachable through
// BufOfs.
type NetmapRing struct {
	base  uintptr
	slots []NetmapSlot
}

// NewNetmapRing constructs a handle over an already-allocated block of at
// least RingBlockSize(numSlots) bytes at vaddr.
func NewNetmapRing(vaddr uintptr, numSlots uint32) *NetmapRing {
	r := &NetmapRing{base: vaddr}
	slotBase := vaddr + uintptr(ringHeaderSize())
	r.slots = unsafe.Slice((*NetmapSlot)(unsafe.Pointer(slotBase)), numSlots)
	return r
}

func (r *NetmapRing) header() *netmapRingRaw {
	return (*netmapRingRaw)(unsafe.Pointer(r.base))
}

// Base returns the ring's own virtual address.
func (r *NetmapRing) Base() uintptr { return r.base }

// Slots exposes the netmap_slot[] array directly; index k holds
// {buf_idx, len, flags} for descriptor k.
func (r *NetmapRing) Slots() []NetmapSlot { return r.slots }

func (r *NetmapRing) NumSlots() uint32    { return r.header().NumSlots }
func (r *NetmapRing) SetNumSlots(v uint32) { r.header().NumSlots = v }

func (r *NetmapRing) BufOfs() int64     { return r.header().BufOfs }
func (r *NetmapRing) SetBufOfs(v int64) { r.header().BufOfs = v }

func (r *NetmapRing) Head() uint32     { return r.header().Head }
func (r *NetmapRing) SetHead(v uint32) { r.header().Head = v }
func (r *NetmapRing) Cur() uint32      { return r.header().Cur }
func (r *NetmapRing) SetCur(v uint32)  { r.header().Cur = v }
func (r *NetmapRing) Tail() uint32     { return r.header().Tail }
func (r *NetmapRing) SetTail(v uint32) { r.header().Tail = v }

func (r *NetmapRing) NrBufSize() uint32     { return r.header().NrBufSize }
func (r *NetmapRing) SetNrBufSize(v uint32) { r.header().NrBufSize = v }

func (r *NetmapRing) RingID() uint32     { return r.header().RingID }
func (r *NetmapRing) SetRingID(v uint32) { r.header().RingID = v }

func (r *NetmapRing) Dir() api.Dir { return api.Dir(r.header().Dir) }
func (r *NetmapRing) SetDir(d api.Dir) { r.header().Dir = uint32(d) }

// BufAddr returns the userspace-style pointer arithmetic described in
// spec §6: ring + ring.buf_ofs + slot.buf_idx*ring.nr_buf_size, as an
// offset relative to the ring's own base (callers combine with the ring's
// own pool offset to get a globally resolvable address).
func (r *NetmapRing) BufAddr(slotIdx int) int64 {
	h := r.header()
	return h.BufOfs + int64(r.slots[slotIdx].BufIdx)*int64(h.NrBufSize)
}
