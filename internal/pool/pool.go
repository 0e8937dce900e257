// Package pool implements the fixed-element-size memory pool shared by the
// ipset and bag trie/tree node arenas. Elements are allocated in large
// chunks, a free list (backed by a per-chunk bitmap) tracks which slots in
// each chunk are in use, and the pool never shrinks. The bitmap-backed
// free-list search is a first-fit allocator over pool slots rather than
// disk blocks.
package pool

import "github.com/boljen/go-bitmap"

// Ref identifies an element within a Pool. The zero Ref is never returned by
// Alloc and can be used as a caller-side "nil" sentinel.
type Ref uint32

type chunk[T any] struct {
	elems []T
	free  bitmap.Bitmap
	// nextFree is the lowest slot index that might be free; a cheap
	// forward-scan cursor so repeated allocation doesn't always restart at 0.
	nextFree int
}

// Pool allocates fixed-size elements of type T in chunks of chunkSize,
// keeping a free list per chunk and never releasing chunks back to the
// runtime until the whole Pool is dropped.
type Pool[T any] struct {
	chunkSize int
	chunks    []*chunk[T]
}

// New creates a Pool that allocates elements chunkSize at a time.
func New[T any](chunkSize int) *Pool[T] {
	if chunkSize <= 0 {
		chunkSize = 256
	}
	return &Pool[T]{chunkSize: chunkSize}
}

func (p *Pool[T]) addChunk() *chunk[T] {
	c := &chunk[T]{
		elems: make([]T, p.chunkSize),
		free:  bitmap.New(p.chunkSize),
	}
	p.chunks = append(p.chunks, c)
	return c
}

// Alloc returns a Ref to a zero-valued element and a pointer to it for
// in-place initialization. It never returns an error: chunks are grown from
// the Go heap, so the only failure mode is an allocator panic, which is
// consistent with how the rest of this module treats out-of-memory.
func (p *Pool[T]) Alloc() (Ref, *T) {
	for ci, c := range p.chunks {
		if idx, ok := c.findFree(); ok {
			c.free.Set(idx, true)
			var zero T
			c.elems[idx] = zero
			return refFor(ci, idx, p.chunkSize), &c.elems[idx]
		}
	}

	ci := len(p.chunks)
	c := p.addChunk()
	c.free.Set(0, true)
	c.nextFree = 1
	return refFor(ci, 0, p.chunkSize), &c.elems[0]
}

// Free returns the element at ref to the free list. Freeing an already-free
// or out-of-range ref is a no-op.
func (p *Pool[T]) Free(ref Ref) {
	ci, idx := p.split(ref)
	if ci < 0 || ci >= len(p.chunks) {
		return
	}
	c := p.chunks[ci]
	if idx < 0 || idx >= len(c.elems) {
		return
	}
	c.free.Set(idx, false)
	if idx < c.nextFree {
		c.nextFree = idx
	}
}

// Get returns a pointer to the element referenced by ref. The caller must
// not retain the pointer past a subsequent Free of the same ref.
func (p *Pool[T]) Get(ref Ref) *T {
	ci, idx := p.split(ref)
	if ci < 0 || ci >= len(p.chunks) {
		return nil
	}
	c := p.chunks[ci]
	if idx < 0 || idx >= len(c.elems) {
		return nil
	}
	return &c.elems[idx]
}

func (c *chunk[T]) findFree() (int, bool) {
	for i := c.nextFree; i < len(c.elems); i++ {
		if !c.free.Get(i) {
			c.nextFree = i + 1
			return i, true
		}
	}
	// The forward cursor ran off the end; rescan from the top in case slots
	// below nextFree were freed after the cursor passed them.
	for i := 0; i < c.nextFree && i < len(c.elems); i++ {
		if !c.free.Get(i) {
			return i, true
		}
	}
	return 0, false
}

func refFor(chunkIndex, slot, chunkSize int) Ref {
	return Ref(chunkIndex*chunkSize + slot + 1)
}

func (p *Pool[T]) split(ref Ref) (chunkIndex, slot int) {
	if ref == 0 {
		return -1, -1
	}
	n := int(ref) - 1
	return n / p.chunkSize, n % p.chunkSize
}
