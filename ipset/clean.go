package ipset

// Clean linearizes the tree layout into a sorted array of maximally-merged
// CIDR blocks. It also opportunistically merges sibling leaves bottom-up in
// the tree itself, so a subsequent Copy/Union sees the more compact form
// too.
func (s *IPSet) Clean() error {
	if !s.dirty && s.arr != nil {
		return nil
	}
	merged := mergeSubtree(s.t, s.t.root)
	s.t.root = merged

	var blocks []cidrBlock
	addr := make([]byte, s.family.addrLen())
	linearize(s.t, s.t.root, addr, 0, s.family.width(), &blocks)

	s.arr = &sortedArray{blocks: blocks}
	s.dirty = false
	s.count = uint64(len(blocks))
	return nil
}

// mergeSubtree collapses an internal node whose two children are both full
// leaves into a single leaf, bottom-up. It operates in place on t and
// returns the (possibly replaced) child.
func mergeSubtree(t *trie, c child) child {
	if c.kind != childInternal {
		return c
	}
	node := t.get(c.ref)
	node.left = mergeSubtree(t, node.left)
	node.right = mergeSubtree(t, node.right)
	if node.left.kind == childLeaf && node.right.kind == childLeaf {
		return leafChild
	}
	if node.left.kind == childNone && node.right.kind == childNone {
		return noneChild
	}
	return c
}

// linearize walks the trie in address order, appending one cidrBlock per
// leaf encountered. addr is the path taken so far (byte slice with bits
// above depth already set), reused and copied only at append time.
func linearize(t *trie, c child, addr []byte, depth, width int, out *[]cidrBlock) {
	switch c.kind {
	case childNone:
		return
	case childLeaf:
		block := cidrBlock{
			addr:   append([]byte(nil), addr...),
			prefix: depth,
		}
		zeroBitsFrom(block.addr, depth, width)
		*out = append(*out, block)
		return
	default:
		node := t.get(c.ref)
		setBit(addr, depth, 0)
		linearize(t, node.left, addr, depth+1, width, out)
		setBit(addr, depth, 1)
		linearize(t, node.right, addr, depth+1, width, out)
	}
}
