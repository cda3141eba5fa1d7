// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool is a slab-style allocator for objects of one logical class (IF,
// RING, or BUF pool kind). It owns clusters of contiguously allocated
// pages, a lookup table of per-object virtual/physical addresses, and a
// bitmap of free slots, using the same bitmap/lut bookkeeping shape as a
// buffer pool but reshaped around the three fixed pool kinds.

package pool

import (
	"sync"
	"unsafe"

	"github.com/momentics/netmap/api"
	"github.com/momentics/netmap/internal/concurrency"
)

const cacheLineSize = 64

// bound is the configured (min, max) envelope for one pool kind.
type bound struct {
	objMinSize, objMaxSize int
	numMin, numMax         int
}

// defaultBounds per spec §6 and E1 ("pool[BUF]._objsize == 2048").
var defaultBounds = map[api.PoolKind]bound{
	api.PoolIF:  {objMinSize: 128, objMaxSize: 1 << 16, numMin: 1, numMax: 1 << 12},
	api.PoolRING: {objMinSize: 512, objMaxSize: api.MaxClustSize, numMin: 1, numMax: 1 << 14},
	api.PoolBUF:  {objMinSize: 64, objMaxSize: 1 << 16, numMin: api.NumReservedBufs, numMax: 1 << 20},
}

// Pool implements the bitmap/lut slab allocator for one pool kind.
type Pool struct {
	mu sync.Mutex

	kind  api.PoolKind
	bound bound

	alloc    ClusterAllocator
	numaNode int

	objSize      int
	clustEntries int
	clustSize    int
	numClusters  int
	objTotal     int
	memTotal     int

	reqObjTotal, reqObjSize int
	curObjTotal, curObjSize int

	lut      []api.LutEntry
	clusters [][]byte
	bitmap   []uint32
	objFree  int

	// fastFree is a lock-free accelerator over the bitmap: freed indices are
	// pushed here and Allocate tries it before falling back to the bitmap
	// scan. The bitmap remains the ground truth for every invariant.
	fastFree *concurrency.LockFreeQueue[uint32]

	finalized bool
}

// NewPool constructs an unconfigured pool of the given kind.
func NewPool(kind api.PoolKind, alloc ClusterAllocator, numaNode int) *Pool {
	return &Pool{
		kind:     kind,
		bound:    defaultBounds[kind],
		alloc:    alloc,
		numaNode: numaNode,
	}
}

func roundUpCacheLine(n int) int {
	if n <= 0 {
		return cacheLineSize
	}
	return ((n + cacheLineSize - 1) / cacheLineSize) * cacheLineSize
}

// Configure validates (objtotal, objsize) and computes cluster geometry,
// but performs no allocation.
func (p *Pool) Configure(objsize, objtotal int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	aligned := roundUpCacheLine(objsize)
	if aligned < p.bound.objMinSize || aligned > p.bound.objMaxSize {
		return api.NewError(api.ErrCodeInvalidConfig, "object size out of range").
			WithContext("pool", p.kind.String()).WithContext("objsize", aligned)
	}
	if objtotal < p.bound.numMin || objtotal > p.bound.numMax {
		return api.NewError(api.ErrCodeInvalidConfig, "object total out of range").
			WithContext("pool", p.kind.String()).WithContext("objtotal", objtotal)
	}

	clustEntries := 0
	for i := 1; i*aligned <= api.MaxClustSize; i++ {
		if (i*aligned)%api.PageSize == 0 {
			clustEntries = i
			break
		}
	}
	if clustEntries == 0 {
		return api.NewError(api.ErrCodeInvalidConfig, "no cluster geometry fits page size and max cluster size").
			WithContext("pool", p.kind.String()).WithContext("objsize", aligned)
	}

	p.objSize = aligned
	p.clustEntries = clustEntries
	p.clustSize = clustEntries * aligned
	p.numClusters = (objtotal + clustEntries - 1) / clustEntries
	p.curObjTotal = p.numClusters * clustEntries
	p.curObjSize = aligned
	p.reqObjTotal = objtotal
	p.reqObjSize = objsize
	p.objTotal = p.curObjTotal
	p.memTotal = p.numClusters * p.clustSize
	return nil
}

// IsNoOp reports whether a (objsize, objtotal) request matches the last
// configured request, letting the owning domain skip a reconfigure.
func (p *Pool) IsNoOp(objsize, objtotal int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqObjSize == objsize && p.reqObjTotal == objtotal
}

// Finalize allocates cluster backing memory and builds the lut. On
// allocation failure mid-way it halves the already-allocated cluster
// count (graceful degradation, spec §7) rather than failing outright,
// provided at least two clusters were obtained.
func (p *Pool) Finalize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clustEntries == 0 {
		return api.NewError(api.ErrCodeInvalidConfig, "finalize called before configure")
	}

	clusters := make([][]byte, 0, p.numClusters)
	for i := 0; i < p.numClusters; i++ {
		c, err := p.alloc.Alloc(p.clustSize, p.numaNode)
		if err != nil {
			target := len(clusters) / 2
			if len(clusters) < 2 {
				for _, cc := range clusters {
					p.alloc.Free(cc)
				}
				return api.NewError(api.ErrCodeOutOfMemory, "cluster allocation failed below minimum of two clusters").
					WithContext("pool", p.kind.String()).WithContext("allocated", len(clusters))
			}
			for _, cc := range clusters[target:] {
				p.alloc.Free(cc)
			}
			clusters = clusters[:target]
			break
		}
		clusters = append(clusters, c)
	}

	p.clusters = clusters
	p.numClusters = len(clusters)
	p.objTotal = p.numClusters * p.clustEntries
	p.curObjTotal = p.objTotal
	p.memTotal = p.numClusters * p.clustSize

	p.lut = make([]api.LutEntry, p.objTotal)
	for ci, cluster := range clusters {
		base := uintptr(unsafe.Pointer(&cluster[0]))
		for j := 0; j < p.clustEntries; j++ {
			idx := ci*p.clustEntries + j
			addr := base + uintptr(j*p.objSize)
			// No kernel privilege to resolve a true physical address from
			// userspace; the physical lut entry is a documented stand-in
			// equal to the virtual address (OS DMA glue is out of scope).
			p.lut[idx] = api.LutEntry{Vaddr: addr, Paddr: addr}
		}
	}

	if err := p.initBitmapLocked(); err != nil {
		return err
	}
	p.fastFree = concurrency.NewLockFreeQueue[uint32](p.objTotal)
	p.finalized = true
	return nil
}

// InitBitmap re-initializes the free bitmap from the lut's occupied-slot
// markers, reclaiming every outstanding allocation without touching
// cluster memory, the lut, or any virtual address already handed out —
// unlike Reset+Configure+Finalize, which reallocates clusters and would
// hand the surviving user new vaddrs, breaking the mmap offset contract.
func (p *Pool) InitBitmap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.finalized {
		return api.NewError(api.ErrCodeNotFinalized, "init bitmap called before finalize")
	}
	return p.initBitmapLocked()
}

func (p *Pool) initBitmapLocked() error {
	words := (p.objTotal + 31) / 32
	p.bitmap = make([]uint32, words)
	for i := 0; i < p.objTotal; i++ {
		if p.lut[i].Vaddr != 0 {
			p.bitmap[i/32] |= 1 << uint(i%32)
		}
	}
	p.objFree = popcountAll(p.bitmap)
	if p.kind == api.PoolBUF {
		p.bitmap[0] &^= 1 << 0
		p.bitmap[0] &^= 1 << 1
		p.objFree -= api.NumReservedBufs
		if p.objFree < 2 {
			return api.NewError(api.ErrCodeOutOfMemory, "buf pool has fewer than 2 free objects after reserving scratch buffers")
		}
	}
	return nil
}

func popcountAll(words []uint32) int {
	n := 0
	for _, w := range words {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}

// Kind returns the pool's class.
func (p *Pool) Kind() api.PoolKind { return p.kind }

// Info reports current sizing.
func (p *Pool) Info() (objsize, objtotal uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint32(p.curObjSize), uint32(p.curObjTotal)
}

// ObjFree reports the number of currently free slots.
func (p *Pool) ObjFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.objFree
}

// NumClusters reports the number of backing clusters obtained.
func (p *Pool) NumClusters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numClusters
}

// MemTotal reports the total bytes of backing memory across all clusters.
func (p *Pool) MemTotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memTotal
}

// Allocate scans the bitmap from an optional start hint (ignored if
// negative), returning the first free object's index and virtual address.
// The lock-free fastFree queue is tried first as an O(1) accelerator.
func (p *Pool) Allocate(start int) (idx uint32, vaddr uintptr, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.finalized {
		return 0, 0, api.NewError(api.ErrCodeNotFinalized, "pool not finalized")
	}

	if p.fastFree != nil {
		if i, ok := p.fastFree.Dequeue(); ok {
			if p.clearBitLocked(int(i)) {
				p.objFree--
				return i, p.lut[i].Vaddr, nil
			}
			// Stale hint (already reallocated); fall through to scan.
		}
	}

	if start < 0 {
		start = 0
	}
	words := len(p.bitmap)
	// start only selects the starting word, not the bit within it, so the
	// scan can return an index < start (e.g. a lower bit in the same word
	// that happens to still be free). Harmless for every caller here, which
	// only uses start as a rotation hint to spread allocations, not as a
	// hard lower bound.
	startWord := start / 32
	for w := 0; w < words; w++ {
		wordIdx := (startWord + w) % words
		word := p.bitmap[wordIdx]
		if word == 0 {
			continue
		}
		bit := trailingZeros32(word)
		i := wordIdx*32 + bit
		if i >= p.objTotal {
			continue
		}
		p.bitmap[wordIdx] &^= 1 << uint(bit)
		p.objFree--
		return uint32(i), p.lut[i].Vaddr, nil
	}
	return 0, 0, api.NewError(api.ErrCodeOutOfMemory, "pool exhausted").WithContext("pool", p.kind.String())
}

func trailingZeros32(w uint32) int {
	n := 0
	for w&1 == 0 {
		w >>= 1
		n++
	}
	return n
}

// clearBitLocked clears bit i if currently set (object was free), reporting
// whether it did so. Caller holds p.mu.
func (p *Pool) clearBitLocked(i int) bool {
	if i < 0 || i >= p.objTotal {
		return false
	}
	word := i / 32
	bit := uint(i % 32)
	if p.bitmap[word]&(1<<bit) == 0 {
		return false
	}
	p.bitmap[word] &^= 1 << bit
	return true
}

// FreeByIndex returns object i to the pool. Indices 0 and 1 of the BUF
// pool are permanently reserved and can never be freed or allocated.
func (p *Pool) FreeByIndex(i uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.kind == api.PoolBUF && i < api.NumReservedBufs {
		return api.NewError(api.ErrCodeBadIndex, "cannot free reserved buffer index").WithContext("index", i)
	}
	if int(i) >= p.objTotal {
		return api.NewError(api.ErrCodeBadIndex, "index out of range").WithContext("index", i).WithContext("objtotal", p.objTotal)
	}
	word := i / 32
	bit := i % 32
	if p.bitmap[word]&(1<<bit) != 0 {
		return api.NewError(api.ErrCodeDoubleFree, "double free").WithContext("index", i)
	}
	p.bitmap[word] |= 1 << bit
	p.objFree++
	if p.fastFree != nil {
		p.fastFree.Enqueue(i)
	}
	return nil
}

// FreeByAddress locates the owning cluster of vaddr and frees its index.
// Used for rarely-freed objects (rings, netmap_if).
func (p *Pool) FreeByAddress(vaddr uintptr) error {
	p.mu.Lock()
	idx, err := p.indexOfLocked(vaddr)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.FreeByIndex(idx)
}

func (p *Pool) indexOfLocked(vaddr uintptr) (uint32, error) {
	for ci, cluster := range p.clusters {
		base := uintptr(unsafe.Pointer(&cluster[0]))
		end := base + uintptr(p.clustSize)
		if vaddr >= base && vaddr < end {
			slot := int(vaddr-base) / p.objSize
			return uint32(ci*p.clustEntries + slot), nil
		}
	}
	return 0, api.NewError(api.ErrCodeBadOffset, "address outside all clusters")
}

// OffsetOf converts a kernel virtual address inside the pool into the
// pool-relative byte offset.
func (p *Pool) OffsetOf(vaddr uintptr) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ci, cluster := range p.clusters {
		base := uintptr(unsafe.Pointer(&cluster[0]))
		end := base + uintptr(p.clustSize)
		if vaddr >= base && vaddr < end {
			return uint64(ci*p.clustSize) + uint64(vaddr-base), nil
		}
	}
	return 0, api.NewError(api.ErrCodeBadOffset, "offset outside all pools")
}

// VAddrAt returns the virtual address of object index i.
func (p *Pool) VAddrAt(i uint32) (uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(i) >= len(p.lut) {
		return 0, api.NewError(api.ErrCodeBadIndex, "index out of range")
	}
	return p.lut[i].Vaddr, nil
}

// LutEntryAt returns the (vaddr, paddr) pair of object index i.
func (p *Pool) LutEntryAt(i uint32) (api.LutEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(i) >= len(p.lut) {
		return api.LutEntry{}, api.NewError(api.ErrCodeBadIndex, "index out of range")
	}
	return p.lut[i], nil
}

// Bitmap returns a defensive copy of the free bitmap, for testing.
func (p *Pool) Bitmap() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]uint32, len(p.bitmap))
	copy(cp, p.bitmap)
	return cp
}

// Reset frees all clusters, zeros the lut and bitmap, and clears derived
// counters. Destroy is Reset.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clusters {
		p.alloc.Free(c)
	}
	p.clusters = nil
	p.lut = nil
	p.bitmap = nil
	p.objFree = 0
	p.objTotal = 0
	p.memTotal = 0
	p.numClusters = 0
	p.fastFree = nil
	p.finalized = false
}
