package ipset

// combineOp selects which set-algebra law combine() applies.
type combineOp int

const (
	opUnion combineOp = iota
	opIntersect
	opSubtract
)

// combine computes a op b (with a drawn from aTrie, b from bTrie) into a
// brand-new subtree built in dstTrie, via a parallel trie walk that emits
// the sibling block(s) of the excluded subtree at every split point,
// producing the minimal CIDR
// decomposition (full normalization into maximally-merged blocks is left to
// Clean(), which may be run afterward).
func combine(dstTrie *trie, a child, aTrie *trie, b child, bTrie *trie, op combineOp) child {
	switch op {
	case opUnion:
		if a.kind == childLeaf || b.kind == childLeaf {
			return leafChild
		}
		if a.kind == childNone {
			return cloneInto(dstTrie, bTrie, b)
		}
		if b.kind == childNone {
			return cloneInto(dstTrie, aTrie, a)
		}
		an, bn := aTrie.get(a.ref), bTrie.get(b.ref)
		left := combine(dstTrie, an.left, aTrie, bn.left, bTrie, op)
		right := combine(dstTrie, an.right, aTrie, bn.right, bTrie, op)
		return dstTrie.newInternalPruned(left, right)

	case opIntersect:
		if a.kind == childNone || b.kind == childNone {
			return noneChild
		}
		if a.kind == childLeaf {
			return cloneInto(dstTrie, bTrie, b)
		}
		if b.kind == childLeaf {
			return cloneInto(dstTrie, aTrie, a)
		}
		an, bn := aTrie.get(a.ref), bTrie.get(b.ref)
		left := combine(dstTrie, an.left, aTrie, bn.left, bTrie, op)
		right := combine(dstTrie, an.right, aTrie, bn.right, bTrie, op)
		return dstTrie.newInternalPruned(left, right)

	case opSubtract:
		if b.kind == childLeaf {
			return noneChild
		}
		if b.kind == childNone {
			return cloneInto(dstTrie, aTrie, a)
		}
		if a.kind == childNone {
			return noneChild
		}
		bn := bTrie.get(b.ref)
		if a.kind == childLeaf {
			// a fully covers this subtree but b only partially excludes it:
			// expand a into a virtual pair of leaves and recurse against
			// b's actual structure, splitting exactly the excluded blocks.
			left := combine(dstTrie, leafChild, aTrie, bn.left, bTrie, op)
			right := combine(dstTrie, leafChild, aTrie, bn.right, bTrie, op)
			return dstTrie.newInternalPruned(left, right)
		}
		an := aTrie.get(a.ref)
		left := combine(dstTrie, an.left, aTrie, bn.left, bTrie, op)
		right := combine(dstTrie, an.right, aTrie, bn.right, bTrie, op)
		return dstTrie.newInternalPruned(left, right)
	}
	return noneChild
}

// UnionInto sets dst to the union of dst and src, allocating as needed.
// Mixed-family operands are promoted: the narrower (v4) side is mapped into
// ::ffff:0:0/96 before the walk.
func UnionInto(dst, src *IPSet) error {
	return combineInto(dst, src, opUnion)
}

// IntersectInto sets dst to the intersection of dst and src.
func IntersectInto(dst, src *IPSet) error {
	return combineInto(dst, src, opIntersect)
}

// SubtractInto removes every address of src from dst. If promotion to v6
// occurred because the operands had mixed families, dst is left in the wider
// family.
func SubtractInto(dst, src *IPSet) error {
	return combineInto(dst, src, opSubtract)
}

// combineInto is the shared driver behind UnionInto/IntersectInto/
// SubtractInto: it reconciles families (promoting v4 to v6 when they
// differ), builds a fresh result trie via combine(), and swaps it into dst.
// The old dst trie's nodes are left unreclaimed -- pools never shrink, and a
// subsequent Clean() discards tree structure entirely in favor of the array
// layout, so the leaked nodes are harmless.
func combineInto(dst, src *IPSet, op combineOp) error {
	srcTrie := src.t
	dstFamily := dst.family

	if dst.family != src.family {
		if dst.family == FamilyV4 {
			dst.t = promoteTrie(dst.t)
			dst.family = FamilyV6
			dstFamily = FamilyV6
		}
		if src.family == FamilyV4 {
			srcTrie = promoteTrie(src.t)
		}
	}

	result := newTrie(dstFamily.width())
	result.root = combine(result, dst.t.root, dst.t, srcTrie.root, srcTrie, op)

	dst.t = result
	dst.markDirty()
	return nil
}
