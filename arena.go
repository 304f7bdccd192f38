package art

import (
	"github.com/cespare/xxhash"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/hashicorp/go-multierror"
)

// Allocator is a bump allocator: Alloc carves n fresh bytes off the
// backing store; Reset rewinds it for reuse without deallocating.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Reset()
	Cap() int
}

// sliceAllocator is a bump allocator over a plain Go byte slice,
// itself usually carved out of a root Allocator.
type sliceAllocator struct {
	buf    []byte
	offset int
}

func (a *sliceAllocator) Alloc(n int) ([]byte, error) {
	if a.offset+n > len(a.buf) {
		return nil, errorf(ErrOutOfMemory, "bump allocator exhausted: %d requested, %d available", n, len(a.buf)-a.offset)
	}
	out := a.buf[a.offset : a.offset+n]
	a.offset += n
	return out, nil
}

func (a *sliceAllocator) Reset() { a.offset = 0 }
func (a *sliceAllocator) Cap() int { return len(a.buf) }

// mmapAllocator is a bump allocator over an anonymous memory-mapped
// region. It is the root allocator the pool's per-slot cells carve
// their own backing slices out of.
type mmapAllocator struct {
	region mmap.MMap
	offset int
}

func newMmapAllocator(capacity int) (*mmapAllocator, error) {
	size := roundUpToPageSize(capacity)
	region, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, wrapErrorf(ErrOutOfMemory, err, "mapping anonymous arena region of %d bytes", size)
	}
	return &mmapAllocator{region: region}, nil
}

func (a *mmapAllocator) Alloc(n int) ([]byte, error) {
	if a.offset+n > len(a.region) {
		return nil, errorf(ErrOutOfMemory, "root allocator exhausted: %d requested, %d available", n, len(a.region)-a.offset)
	}
	out := []byte(a.region)[a.offset : a.offset+n]
	a.offset += n
	return out, nil
}

func (a *mmapAllocator) Reset() { a.offset = 0 }
func (a *mmapAllocator) Cap() int { return len(a.region) }

// Close unmaps the underlying region. Callers must ensure no cell
// carved from this allocator is still in use.
func (a *mmapAllocator) Close() error { return a.region.Unmap() }

// AllocatorCell wraps an Allocator behind a reference count. The pool
// itself holds the baseline reference, so a freshly initialized cell
// starts at refcount 1; AllocatorPool.Get clones a Handle and bumps
// it, Handle.Release drops it. When the count falls back to the
// pool's own baseline of 1, the backing bump is reset in place, not
// deallocated — this is the recycling mechanism described in the
// arena pool's design. A cell leaked into long-lived storage prevents
// this reset from ever firing.
type AllocatorCell struct {
	alloc      Allocator
	refcount   int
	generation uint64
}

func newAllocatorCell(alloc Allocator) *AllocatorCell {
	return &AllocatorCell{alloc: alloc, refcount: 1}
}

// tag returns an integrity tag over the cell's current generation, so
// a Handle created before a reset can detect that it has gone stale.
func (c *AllocatorCell) tag() uint64 {
	var buf [8]byte
	encodeUint64Into(c.generation, buf[:])
	return xxhash.Sum64(buf[:])
}

// Handle is a live, refcounted reference to an AllocatorCell. Go has
// no destructors, so callers must call Release explicitly once done —
// mirroring this package's single-threaded, explicit-lifetime
// discipline rather than relying on scope-based drop.
type Handle struct {
	cell     *AllocatorCell
	index    int
	tag      uint64
	released bool
}

// Alloc carves n bytes out of the cell's backing allocator.
func (h *Handle) Alloc(n int) ([]byte, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}
	return h.cell.alloc.Alloc(n)
}

// checkLive reports ErrCellBorrowed if the handle has been released or
// the cell has since been reset (its integrity tag has moved on).
func (h *Handle) checkLive() error {
	if h.released || h.tag != h.cell.tag() {
		return errCellBorrowed(h.index)
	}
	return nil
}

// Release drops this handle's reference. Idempotent: releasing an
// already-released handle is a no-op.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.cell.refcount--
	if h.cell.refcount <= 1 {
		h.cell.alloc.Reset()
		h.cell.generation++
	}
}

// AllocatorPool is an indexed pool of AllocatorCells carved out of a
// single root Allocator. Reserved slot indices (per the tree layout
// that sits on top of it): 0 is the root-node header storage, 1 the
// orphan list storage, 2 branch scratch, 3+h the backing storage for
// tree layer h.
type AllocatorPool struct {
	root            Allocator
	cells           []*AllocatorCell
	defaultCapacity int
}

// NewPool builds a pool over root with nSlots cells, each given
// perSlotCapacity bytes carved from root.
func NewPool(root Allocator, nSlots, perSlotCapacity int) (*AllocatorPool, error) {
	p := &AllocatorPool{root: root, defaultCapacity: perSlotCapacity}
	if err := p.Expand(nSlots); err != nil {
		return nil, err
	}
	return p, nil
}

// NewMmapPool builds a pool whose root allocator is a fresh anonymous
// memory-mapped region of rootCapacity bytes rounded up to a whole
// number of arenaPageSize pages — the external allocator
// root this package's external interfaces describe.
func NewMmapPool(rootCapacity, nSlots, perSlotCapacity int) (*AllocatorPool, error) {
	root, err := newMmapAllocator(rootCapacity)
	if err != nil {
		return nil, err
	}
	return NewPool(root, nSlots, perSlotCapacity)
}

func (p *AllocatorPool) cellAt(i int) (*AllocatorCell, error) {
	if i < 0 || i >= len(p.cells) || p.cells[i] == nil {
		return nil, errNoAllocatorAtIndex(i)
	}
	return p.cells[i], nil
}

// Initialize (re)carves slot i with its own capacity-byte backing
// slice, overwriting whatever cell previously lived there.
func (p *AllocatorPool) Initialize(i, capacity int) error {
	if i < 0 {
		return errIndexOutOfRange(i, 0)
	}
	buf, err := p.root.Alloc(capacity)
	if err != nil {
		return err
	}
	for len(p.cells) <= i {
		p.cells = append(p.cells, nil)
	}
	p.cells[i] = newAllocatorCell(&sliceAllocator{buf: buf})
	return nil
}

// Expand grows the pool by n freshly initialized cells, each given the
// pool's default per-slot capacity.
func (p *AllocatorPool) Expand(n int) error {
	start := len(p.cells)
	for i := 0; i < n; i++ {
		if err := p.Initialize(start+i, p.defaultCapacity); err != nil {
			return err
		}
	}
	return nil
}

// Shrink drops the pool's last n cells. It fails with ErrCellBorrowed,
// leaving the pool unchanged, if any of them still has an outstanding
// handle.
func (p *AllocatorPool) Shrink(n int) error {
	if n > len(p.cells) {
		n = len(p.cells)
	}
	for i := len(p.cells) - n; i < len(p.cells); i++ {
		cell := p.cells[i]
		if cell == nil {
			continue
		}
		if cell.refcount > 1 {
			return errCellBorrowed(i)
		}
	}
	p.cells = p.cells[:len(p.cells)-n]
	return nil
}

// Get returns a cloned Handle to slot i, bumping its refcount.
func (p *AllocatorPool) Get(i int) (*Handle, error) {
	cell, err := p.cellAt(i)
	if err != nil {
		return nil, err
	}
	cell.refcount++
	return &Handle{cell: cell, index: i, tag: cell.tag()}, nil
}

// GetRef returns a non-owning peek at slot i's cell, for inspection
// only: it does not bump the refcount and the returned cell must not
// be used to Alloc.
func (p *AllocatorPool) GetRef(i int) (*AllocatorCell, error) {
	return p.cellAt(i)
}

// GetMut returns an exclusive Handle to slot i: it fails with
// ErrCellBorrowed unless the cell currently has no outstanding handle
// beyond the pool's own baseline reference.
func (p *AllocatorPool) GetMut(i int) (*Handle, error) {
	cell, err := p.cellAt(i)
	if err != nil {
		return nil, err
	}
	if cell.refcount > 1 {
		return nil, errCellBorrowed(i)
	}
	cell.refcount++
	return &Handle{cell: cell, index: i, tag: cell.tag()}, nil
}

// Has reports whether slot i has been initialized.
func (p *AllocatorPool) Has(i int) bool {
	_, err := p.cellAt(i)
	return err == nil
}

// Clear resets slot i's bump allocator in place. Fails with
// ErrCellBorrowed if any handle is still outstanding.
func (p *AllocatorPool) Clear(i int) error {
	cell, err := p.cellAt(i)
	if err != nil {
		return err
	}
	if cell.refcount > 1 {
		return errCellBorrowed(i)
	}
	cell.alloc.Reset()
	cell.generation++
	return nil
}

// Len returns the number of reserved cell slots in the pool.
func (p *AllocatorPool) Len() int { return len(p.cells) }

// Capacity is an alias for Len: the pool has no distinct notion of
// reserved-but-uninitialized capacity beyond its slot slice.
func (p *AllocatorPool) Capacity() int { return len(p.cells) }

// Close tears down the pool's root allocator, if it owns closeable
// resources (e.g. an mmap region), aggregating every failure instead
// of stopping at the first.
func (p *AllocatorPool) Close() error {
	type closer interface{ Close() error }
	var result *multierror.Error
	if c, ok := p.root.(closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
