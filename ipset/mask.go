package ipset

// Mask rewrites s in place so that for every depth-bit netblock containing
// any member, only that block's base address survives, as a single host
// entry: a block wider than depth (prefix < depth) contributes one host per
// contained depth-bit block (e.g. mask(16) on 32.32.0.0/15 yields both
// 32.32.0.0 and 32.33.0.0, not the /16 blocks themselves); a block at or
// narrower than depth (prefix >= depth) contributes its own depth-bit
// block's base address.
func (s *IPSet) Mask(depth int) error {
	if depth < 0 || depth > s.family.width() {
		return ErrPrefix
	}
	var blocks []cidrBlock
	width := s.family.width()
	addr := make([]byte, s.family.addrLen())
	linearize(s.t, s.t.root, addr, 0, width, &blocks)

	out := newTrie(width)
	for _, b := range blocks {
		collect(out, b, depth, width)
	}
	s.t = out
	s.markDirty()
	return nil
}

// collect expands block b into one or more depth-bit netblock base
// addresses, each inserted as a single full-width host (not a depth-wide
// block): a block wider than depth (prefix < depth) spans multiple
// depth-bit netblocks, so one host is emitted per contained block; a block
// at or narrower than depth (prefix >= depth) lies entirely within one
// depth-bit netblock, whose base address (the block's address with every
// bit from depth onward zeroed) is emitted once.
func collect(out *trie, b cidrBlock, depth, width int) {
	if b.prefix >= depth {
		masked := append([]byte(nil), b.addr...)
		zeroBitsFrom(masked, depth, width)
		out.insert(masked, width)
		return
	}
	count := 1 << uint(depth-b.prefix)
	for i := 0; i < count; i++ {
		addr := append([]byte(nil), b.addr...)
		setSuffixBits(addr, b.prefix, depth, i)
		out.insert(addr, width)
	}
}

// zeroBitsFrom clears addr's bits [from, width) in place.
func zeroBitsFrom(addr []byte, from, width int) {
	for k := from; k < width; k++ {
		setBit(addr, k, 0)
	}
}

// setSuffixBits writes the low (to-from) bits of i into addr's [from, to)
// bit range, most-significant bit first.
func setSuffixBits(addr []byte, from, to, i int) {
	width := to - from
	for k := 0; k < width; k++ {
		bit := (i >> uint(width-1-k)) & 1
		setBit(addr, from+k, bit)
	}
}

// MaskAndFill rewrites s in place so that every member block narrower than
// depth is filled to exactly depth bits, but blocks already at or shallower
// than depth are left unchanged: mask_and_fill(16) on 32.32.0.0/15 leaves it
// as a single /15, unlike Mask.
func (s *IPSet) MaskAndFill(depth int) error {
	if depth < 0 || depth > s.family.width() {
		return ErrPrefix
	}
	var blocks []cidrBlock
	addr := make([]byte, s.family.addrLen())
	linearize(s.t, s.t.root, addr, 0, s.family.width(), &blocks)

	out := newTrie(s.family.width())
	for _, b := range blocks {
		if b.prefix <= depth {
			out.insert(append([]byte(nil), b.addr...), b.prefix)
			continue
		}
		masked := append([]byte(nil), b.addr...)
		out.insert(masked, depth)
	}
	s.t = out
	s.markDirty()
	return nil
}
