package ipset

import "math"

// Insert adds addr/prefix (addr is 4 or 16 bytes, matching s's family unless
// AutoConvert is enabled) as a member.
func (s *IPSet) Insert(addr []byte, prefix int) error {
	a, err := s.normalize(addr)
	if err != nil {
		return err
	}
	if prefix < 0 || prefix > s.family.width() {
		return ErrPrefix
	}
	s.t.insert(a, prefix)
	s.markDirty()
	return nil
}

// Remove clears addr/prefix from the set.
func (s *IPSet) Remove(addr []byte, prefix int) error {
	a, err := s.normalize(addr)
	if err != nil {
		return err
	}
	if prefix < 0 || prefix > s.family.width() {
		return ErrPrefix
	}
	s.t.remove(a, prefix)
	s.markDirty()
	return nil
}

// Contains reports whether addr is a member. It prefers the clean array
// layout when available and up to date.
func (s *IPSet) Contains(addr []byte) (bool, error) {
	a, err := s.normalize(addr)
	if err != nil {
		return false, err
	}
	if !s.dirty && s.arr != nil {
		return s.arr.contains(a), nil
	}
	return s.t.contains(a), nil
}

// normalize applies the auto-convert policy to addr so it matches s.family,
// returning ErrIPv6 when conversion is required but disabled.
func (s *IPSet) normalize(addr []byte) ([]byte, error) {
	switch {
	case len(addr) == 4 && s.family == FamilyV4:
		return addr, nil
	case len(addr) == 16 && s.family == FamilyV6:
		return addr, nil
	case len(addr) == 4 && s.family == FamilyV6:
		if !s.autoConv {
			return nil, ErrIPv6
		}
		return toV6(addr), nil
	case len(addr) == 16 && s.family == FamilyV4:
		if !s.autoConv || !isV4Mapped(addr) {
			return nil, ErrIPv6
		}
		return toV4(addr), nil
	default:
		return nil, ErrBadInput
	}
}

// InsertRange adds every address in [lo, hi] (inclusive), decomposed into
// the minimal set of CIDR blocks.
func (s *IPSet) InsertRange(lo, hi []byte) error {
	a, err := s.normalize(lo)
	if err != nil {
		return err
	}
	b, err := s.normalize(hi)
	if err != nil {
		return err
	}
	if addrLess(b, a) {
		return ErrBadInput
	}
	for _, blk := range decomposeRange(a, b, s.family.width()) {
		s.t.insert(blk.addr, blk.prefix)
	}
	s.markDirty()
	return nil
}

// RemoveRange clears every address in [lo, hi] (inclusive).
func (s *IPSet) RemoveRange(lo, hi []byte) error {
	a, err := s.normalize(lo)
	if err != nil {
		return err
	}
	b, err := s.normalize(hi)
	if err != nil {
		return err
	}
	if addrLess(b, a) {
		return ErrBadInput
	}
	for _, blk := range decomposeRange(a, b, s.family.width()) {
		s.t.remove(blk.addr, blk.prefix)
	}
	s.markDirty()
	return nil
}

// decomposeRange splits the inclusive address range [lo, hi] into the
// minimal list of aligned CIDR blocks that exactly cover it.
func decomposeRange(lo, hi []byte, width int) []cidrBlock {
	var out []cidrBlock
	cur := append([]byte(nil), lo...)
	for addrLessEq(cur, hi) {
		maxPrefix := alignmentPrefix(cur, width)
		for {
			if maxPrefix >= width {
				break
			}
			end := blockEnd(cur, maxPrefix, width)
			if addrLessEq(end, hi) {
				break
			}
			maxPrefix++
		}
		out = append(out, cidrBlock{addr: append([]byte(nil), cur...), prefix: maxPrefix})
		next := blockEnd(cur, maxPrefix, width)
		if !incrementAddr(next) {
			break
		}
		cur = next
	}
	return out
}

func addrLessEq(a, b []byte) bool {
	return !addrLess(b, a)
}

// alignmentPrefix returns the widest prefix p such that addr's low
// (width-p) bits are all zero, i.e. addr is aligned to a 2^(width-p) block.
func alignmentPrefix(addr []byte, width int) int {
	for p := width; p > 0; p-- {
		if bitAt(addr, p-1) != 0 {
			return p
		}
	}
	return 0
}

// blockEnd returns the last address of the prefix-bit block containing addr
// (addr with every bit from prefix onward set). Callers compare it against
// hi with addrLessEq and step past it with incrementAddr.
func blockEnd(addr []byte, prefix, width int) []byte {
	out := append([]byte(nil), addr...)
	for i := prefix; i < width; i++ {
		setBit(out, i, 1)
	}
	return out
}

func addPow2(addr []byte, shift int) {
	n := len(addr)
	bitsTotal := n * 8
	idx := bitsTotal - shift
	carry := 1
	for b := idx - 1; b >= 0 && carry > 0; b-- {
		byteIdx := b / 8
		bitIdx := uint(7 - (b % 8))
		bit := int((addr[byteIdx] >> bitIdx) & 1)
		sum := bit + carry
		setBit(addr, b, sum&1)
		carry = sum >> 1
	}
}

func incrementAddr(addr []byte) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] < 0xff {
			addr[i]++
			return true
		}
		addr[i] = 0
	}
	return false
}

// InsertWildcard adds every address matched by w as a member.
func (s *IPSet) InsertWildcard(w *Wildcard) error {
	for _, blk := range w.blocks(s.family.width()) {
		a, err := s.normalize(blk.addr)
		if err != nil {
			return err
		}
		s.t.insert(a, blk.prefix)
	}
	s.markDirty()
	return nil
}

// RemoveWildcard clears every address matched by w.
func (s *IPSet) RemoveWildcard(w *Wildcard) error {
	for _, blk := range w.blocks(s.family.width()) {
		a, err := s.normalize(blk.addr)
		if err != nil {
			return err
		}
		s.t.remove(a, blk.prefix)
	}
	s.markDirty()
	return nil
}

// Intersects reports whether s and other share any member address.
func Intersects(s, other *IPSet) (bool, error) {
	a, b := s.t, other.t
	ar, br := a.root, b.root
	if s.family != other.family {
		if s.family == FamilyV4 {
			a = promoteTrie(s.t)
			ar = a.root
		}
		if other.family == FamilyV4 {
			b = promoteTrie(other.t)
			br = b.root
		}
	}
	return treesIntersect(a, ar, b, br), nil
}

func treesIntersect(aTrie *trie, a child, bTrie *trie, b child) bool {
	if a.kind == childNone || b.kind == childNone {
		return false
	}
	if a.kind == childLeaf || b.kind == childLeaf {
		return true
	}
	an, bn := aTrie.get(a.ref), bTrie.get(b.ref)
	return treesIntersect(aTrie, an.left, bTrie, bn.left) ||
		treesIntersect(aTrie, an.right, bTrie, bn.right)
}

// IntersectsWildcard reports whether s contains any address matched by w.
func (s *IPSet) IntersectsWildcard(w *Wildcard) bool {
	for _, blk := range w.blocks(s.family.width()) {
		if subtreeAtPrefixIntersects(s.t, blk.addr, blk.prefix) {
			return true
		}
	}
	return false
}

// subtreeAtPrefixIntersects reports whether any member falls within
// addr/prefix.
func subtreeAtPrefixIntersects(t *trie, addr []byte, prefix int) bool {
	c := t.root
	for depth := 0; depth < prefix; depth++ {
		switch c.kind {
		case childNone:
			return false
		case childLeaf:
			return true
		}
		node := t.get(c.ref)
		if bitAt(addr, depth) == 0 {
			c = node.left
		} else {
			c = node.right
		}
	}
	return subtreeHasAny(t, c)
}

// Count returns the number of distinct /32 (or /128) addresses in the set,
// and a double-precision shadow of the same value. Only accurate once Clean
// has run; returns ErrRequireClean otherwise. A v6 set whose true address
// count exceeds 2^64-1 clamps the integer result at that maximum; the float
// shadow remains an accurate estimate in that case.
func (s *IPSet) Count() (uint64, float64, error) {
	if s.dirty || s.arr == nil {
		return 0, 0, ErrRequireClean
	}
	var total uint64
	var shadow float64
	var overflowed bool
	width := s.family.width()
	for _, b := range s.arr.blocks {
		shift := uint(width - b.prefix)
		shadow += math.Pow(2, float64(shift))
		if overflowed {
			continue
		}
		if shift >= 64 {
			overflowed = true
			total = math.MaxUint64
			continue
		}
		blockCount := uint64(1) << shift
		if total+blockCount < total {
			overflowed = true
			total = math.MaxUint64
			continue
		}
		total += blockCount
	}
	return total, shadow, nil
}
