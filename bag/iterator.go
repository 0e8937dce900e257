package bag

import "github.com/movsoftware/libsilk/internal/rbtree"

// Iterator walks a Bag's (key, counter) pairs. Sorted iterators yield keys
// in strictly ascending order; unsorted iterators use whichever order the
// underlying storage naturally provides (which, for both representations
// here, already happens to be ascending, but callers should not rely on
// that for the unsorted form).
type Iterator struct {
	bag        *Bag
	sorted     bool
	keyWidth   int
	generation uint64

	// narrow-key cursor state
	started    bool
	currentKey []byte

	// wide-key cursor state
	wideStarted bool
	wideKey     rbtree.Key
	wideDone    bool
}

// IteratorCreateSorted binds a sorted iterator over b.
func IteratorCreateSorted(b *Bag) *Iterator {
	return &Iterator{bag: b, sorted: true, keyWidth: b.keyWidth, generation: b.generation}
}

// IteratorCreateUnsorted binds an unsorted iterator over b.
func IteratorCreateUnsorted(b *Bag) *Iterator {
	return &Iterator{bag: b, sorted: false, keyWidth: b.keyWidth, generation: b.generation}
}

// Reset rewinds the iterator to the beginning.
func (it *Iterator) Reset() {
	it.started = false
	it.currentKey = nil
	it.wideStarted = false
	it.wideDone = false
}

// Next returns the next (key, value) pair in order, or ErrModified if the
// Bag's key width changed (via auto-widen) since the iterator was bound, or
// ErrKeyNotFound once exhausted.
func (it *Iterator) Next() (key []byte, value uint64, err error) {
	if it.keyWidth != it.bag.keyWidth {
		return nil, 0, ErrModified
	}

	if it.keyWidth == 16 {
		return it.nextWide()
	}
	return it.nextNarrow()
}

func (it *Iterator) nextWide() ([]byte, uint64, error) {
	if it.wideDone {
		return nil, 0, ErrKeyNotFound
	}
	if !it.wideStarted {
		k, v, ok := it.bag.wide.Min()
		it.wideStarted = true
		if !ok {
			it.wideDone = true
			return nil, 0, ErrKeyNotFound
		}
		it.wideKey = k
		out := append([]byte(nil), k[:]...)
		_ = v
		val, _ := it.bag.wide.Find(k)
		return out, val, nil
	}
	k, v, ok := it.bag.wide.Successor(it.wideKey)
	if !ok {
		it.wideDone = true
		return nil, 0, ErrKeyNotFound
	}
	it.wideKey = k
	return append([]byte(nil), k[:]...), v, nil
}

// nextNarrow advances the sorted narrow-key cursor: increment the current
// key, then probe forward for the next nonzero counter via
// radixTree.nextPresent rather than an explicit per-level index stack --
// equivalent in result, simpler given the bitmap-backed leaves already skip
// zero runs cheaply within a single leaf.
func (it *Iterator) nextNarrow() ([]byte, uint64, error) {
	width := it.keyWidth

	var from []byte
	if !it.started {
		from = make([]byte, width)
		it.started = true
	} else {
		from = incrementKey(it.currentKey)
		if from == nil {
			// overflowed past the maximum key: end of iteration.
			return nil, 0, ErrKeyNotFound
		}
	}

	key, v, ok := it.bag.radix.nextPresent(from)
	if !ok {
		return nil, 0, ErrKeyNotFound
	}
	it.currentKey = key
	return key, v, nil
}

// incrementKey returns key+1 (big-endian), or nil on overflow past the
// width's maximum value.
func incrementKey(key []byte) []byte {
	out := append([]byte(nil), key...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out
		}
		out[i] = 0
	}
	return nil
}
