package bag

import (
	"github.com/boljen/go-bitmap"

	"github.com/movsoftware/libsilk/internal/pool"
)

// radixNode is one level of the fixed 8-bit-stride radix tree for narrow
// (1/2/4-octet) keys: a 256-entry array of child references, with a bitmap
// recording which slots are populated. Lookup and iteration test the child
// references directly; the node bitmap is maintained but not consulted.
type radixNode struct {
	children [256]pool.Ref
	present  bitmap.Bitmap
}

// radixLeaf is the terminal 256-entry array of counters, one level below the
// last radixNode level. present tracks which of the 256 slots hold a
// nonzero counter.
type radixLeaf struct {
	counters [256]uint64
	present  bitmap.Bitmap
}

func newRadixNode() *radixNode {
	return &radixNode{present: bitmap.New(256)}
}

func newRadixLeaf() *radixLeaf {
	return &radixLeaf{present: bitmap.New(256)}
}

// radixTree is the narrow-key Bag storage: keyWidth-1 levels of radixNode
// terminating in a radixLeaf (a 1-octet tree is a single root leaf). Nodes
// and leaves are drawn from two separate memory pools.
type radixTree struct {
	nodes    *pool.Pool[radixNode]
	leaves   *pool.Pool[radixLeaf]
	root     pool.Ref
	rootLeaf pool.Ref // used directly when keyWidth == 1
	keyWidth int
}

func newRadixTree(keyWidth int) *radixTree {
	return &radixTree{
		nodes:    pool.New[radixNode](64),
		leaves:   pool.New[radixLeaf](64),
		keyWidth: keyWidth,
	}
}

func (t *radixTree) node(ref pool.Ref) *radixNode {
	n := t.nodes.Get(ref)
	if len(n.present) == 0 {
		n.present = bitmap.New(256)
	}
	return n
}

func (t *radixTree) leaf(ref pool.Ref) *radixLeaf {
	l := t.leaves.Get(ref)
	if len(l.present) == 0 {
		l.present = bitmap.New(256)
	}
	return l
}

// countSet returns the number of bits set in b[:n].
func countSet(b bitmap.Bitmap, n int) int {
	total := 0
	for i := 0; i < n; i++ {
		if b.Get(i) {
			total++
		}
	}
	return total
}

// get returns the counter for key (zero-padded/truncated externally to
// keyWidth bytes), never allocating.
func (t *radixTree) get(key []byte) uint64 {
	if t.keyWidth == 1 {
		if t.rootLeaf == 0 {
			return 0
		}
		l := t.leaf(t.rootLeaf)
		return l.counters[key[0]]
	}

	ref := t.root
	for depth := 0; depth < t.keyWidth-1; depth++ {
		if ref == 0 {
			return 0
		}
		n := t.node(ref)
		ref = n.children[key[depth]]
	}
	if ref == 0 {
		return 0
	}
	l := t.leaf(ref)
	return l.counters[key[t.keyWidth-1]]
}

// set stores value for key, allocating intermediate nodes/leaves on demand
// when value != 0. value == 0 clears the presence bit but leaves the
// zero-leaf allocated.
func (t *radixTree) set(key []byte, value uint64) {
	if t.keyWidth == 1 {
		if t.rootLeaf == 0 {
			if value == 0 {
				return
			}
			ref, _ := t.leaves.Alloc()
			t.rootLeaf = ref
		}
		l := t.leaf(t.rootLeaf)
		l.counters[key[0]] = value
		l.present.Set(int(key[0]), value != 0)
		return
	}

	if t.root == 0 {
		if value == 0 {
			return
		}
		ref, _ := t.nodes.Alloc()
		t.root = ref
	}

	ref := t.root
	for depth := 0; depth < t.keyWidth-2; depth++ {
		n := t.node(ref)
		idx := int(key[depth])
		if n.children[idx] == 0 {
			if value == 0 {
				return
			}
			childRef, _ := t.nodes.Alloc()
			n.children[idx] = childRef
			n.present.Set(idx, true)
		}
		ref = n.children[idx]
	}

	n := t.node(ref)
	lastNodeIdx := int(key[t.keyWidth-2])
	leafRef := n.children[lastNodeIdx]
	if leafRef == 0 {
		if value == 0 {
			return
		}
		leafRef, _ = t.leaves.Alloc()
		n.children[lastNodeIdx] = leafRef
		n.present.Set(lastNodeIdx, true)
	}

	l := t.leaf(leafRef)
	l.counters[key[t.keyWidth-1]] = value
	l.present.Set(int(key[t.keyWidth-1]), value != 0)
}

// countKeys scans every allocated leaf's presence bitmap, summing live
// entries.
func (t *radixTree) countKeys() int {
	total := 0
	if t.keyWidth == 1 {
		if t.rootLeaf != 0 {
			total += countSet(t.leaf(t.rootLeaf).present, 256)
		}
		return total
	}
	t.walkLeaves(t.root, 0, func(l *radixLeaf) {
		total += countSet(l.present, 256)
	})
	return total
}

func (t *radixTree) walkLeaves(ref pool.Ref, depth int, fn func(*radixLeaf)) {
	if ref == 0 {
		return
	}
	if depth == t.keyWidth-2 {
		n := t.node(ref)
		for i := 0; i < 256; i++ {
			if n.children[i] != 0 {
				fn(t.leaf(n.children[i]))
			}
		}
		return
	}
	n := t.node(ref)
	for i := 0; i < 256; i++ {
		if n.children[i] != 0 {
			t.walkLeaves(n.children[i], depth+1, fn)
		}
	}
}

// each visits every (key, counter) pair with a nonzero counter in ascending
// key order.
func (t *radixTree) each(fn func(key []byte, value uint64) bool) {
	key := make([]byte, t.keyWidth)
	if t.keyWidth == 1 {
		if t.rootLeaf == 0 {
			return
		}
		l := t.leaf(t.rootLeaf)
		for i := 0; i < 256; i++ {
			if l.present.Get(i) {
				key[0] = byte(i)
				if !fn(key, l.counters[i]) {
					return
				}
			}
		}
		return
	}
	t.eachNode(t.root, key, 0, fn)
}

func (t *radixTree) eachNode(ref pool.Ref, key []byte, depth int, fn func([]byte, uint64) bool) bool {
	if ref == 0 {
		return true
	}
	if depth == t.keyWidth-1 {
		l := t.leaf(ref)
		for i := 0; i < 256; i++ {
			if l.present.Get(i) {
				key[depth] = byte(i)
				if !fn(key, l.counters[i]) {
					return false
				}
			}
		}
		return true
	}
	n := t.node(ref)
	for i := 0; i < 256; i++ {
		if n.children[i] != 0 {
			key[depth] = byte(i)
			if !t.eachNode(n.children[i], key, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// nextPresent returns the smallest key >= from with a nonzero counter,
// driving the sorted iterator without enumerating the full key space: at
// each level it first tries to continue along from's own path, then falls
// back to the next populated sibling, recursing into that sibling's
// leftmost populated descendant.
func (t *radixTree) nextPresent(from []byte) ([]byte, uint64, bool) {
	if t.keyWidth == 1 {
		if t.rootLeaf == 0 {
			return nil, 0, false
		}
		l := t.leaf(t.rootLeaf)
		for i := int(from[0]); i < 256; i++ {
			if l.present.Get(i) {
				return []byte{byte(i)}, l.counters[i], true
			}
		}
		return nil, 0, false
	}

	if t.root == 0 {
		return nil, 0, false
	}
	suffix, value, ok := t.searchFrom(t.root, 0, from)
	return suffix, value, ok
}

// searchFrom finds the smallest key at or after from within the subtree
// rooted at ref (itself at the given depth), returning the suffix from
// depth onward; callers prepend their own index byte as the recursion
// unwinds, so the top-level call's result is the full key.
func (t *radixTree) searchFrom(ref pool.Ref, depth int, from []byte) ([]byte, uint64, bool) {
	if depth == t.keyWidth-1 {
		l := t.leaf(ref)
		for j := int(from[depth]); j < 256; j++ {
			if l.present.Get(j) {
				return []byte{byte(j)}, l.counters[j], true
			}
		}
		return nil, 0, false
	}

	n := t.node(ref)
	startIdx := int(from[depth])
	if n.children[startIdx] != 0 {
		if suf, v, ok := t.searchFrom(n.children[startIdx], depth+1, from); ok {
			return append([]byte{byte(startIdx)}, suf...), v, true
		}
	}
	zeroSuffix := make([]byte, t.keyWidth)
	for i := startIdx + 1; i < 256; i++ {
		if n.children[i] == 0 {
			continue
		}
		if suf, v, ok := t.searchFrom(n.children[i], depth+1, zeroSuffix); ok {
			return append([]byte{byte(i)}, suf...), v, true
		}
	}
	return nil, 0, false
}
