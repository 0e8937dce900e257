package ipset

// v4MappedPrefix is the fixed ::ffff:0:0/96 prefix used to embed an IPv4
// address inside an IPv6 trie for mixed-family set algebra. No separate
// v4-in-v6 representation is kept once promoted -- the embedding is exact
// and reversible.
var v4MappedPrefix = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

// toV6 embeds a 4-byte v4 address into a 16-byte v4-mapped v6 address.
func toV6(addr []byte) []byte {
	out := make([]byte, 16)
	copy(out, v4MappedPrefix[:])
	copy(out[12:], addr)
	return out
}

// isV4Mapped reports whether a 16-byte address falls in ::ffff:0:0/96.
func isV4Mapped(addr []byte) bool {
	for i := 0; i < 12; i++ {
		if addr[i] != v4MappedPrefix[i] {
			return false
		}
	}
	return true
}

// toV4 extracts the trailing 4 bytes of a v4-mapped v6 address.
func toV4(addr []byte) []byte {
	out := make([]byte, 4)
	copy(out, addr[12:])
	return out
}

// promoteTrie rebuilds a v4 trie as an equivalent v6 trie with every member
// embedded under ::ffff:0:0/96. Used when set algebra or Convert mixes
// families.
func promoteTrie(src *trie) *trie {
	dst := newTrie(128)
	var blocks []cidrBlock
	addr := make([]byte, 4)
	linearize(src, src.root, addr, 0, 32, &blocks)
	for _, b := range blocks {
		v6addr := toV6(b.addr)
		dst.insert(v6addr, 96+b.prefix)
	}
	return dst
}

// Convert changes s's address family in place. Converting v4 to v6 embeds
// every member under ::ffff:0:0/96. Converting v6 to v4 requires every
// member to already be v4-mapped; ErrIPv6 is returned otherwise.
func (s *IPSet) Convert(target Family) error {
	if s.family == target {
		return nil
	}
	if target == FamilyV6 {
		s.t = promoteTrie(s.t)
		s.family = FamilyV6
		s.markDirty()
		return nil
	}

	var blocks []cidrBlock
	addr := make([]byte, 16)
	linearize(s.t, s.t.root, addr, 0, 128, &blocks)

	out := newTrie(32)
	for _, b := range blocks {
		if b.prefix < 96 || !isV4Mapped(b.addr) {
			return ErrIPv6
		}
		out.insert(toV4(b.addr), b.prefix-96)
	}
	s.t = out
	s.family = FamilyV4
	s.markDirty()
	return nil
}
