package ipset

// Iterator walks a clean IPSet's blocks in address order. Call Clean first;
// IteratorBind returns ErrRequireClean otherwise.
type Iterator struct {
	set    *IPSet
	policy V6Policy
	pos    int
}

// IteratorBind creates an Iterator over s under the given mixed-family
// presentation policy.
func IteratorBind(s *IPSet, policy V6Policy) (*Iterator, error) {
	if s.dirty || s.arr == nil {
		return nil, ErrRequireClean
	}
	return &Iterator{set: s, policy: policy}, nil
}

// Reset rewinds the iterator to its first block.
func (it *Iterator) Reset() {
	it.pos = 0
}

// Next returns the next block's address and prefix, applying the iterator's
// V6Policy. ErrNotFound signals exhaustion.
func (it *Iterator) Next() (addr []byte, prefix int, err error) {
	for it.pos < len(it.set.arr.blocks) {
		b := it.set.arr.blocks[it.pos]
		it.pos++

		switch it.policy {
		case V6Only:
			if it.set.family != FamilyV6 {
				continue
			}
		case V6Ignore:
			if it.set.family == FamilyV6 && !(b.prefix >= 96 && isV4Mapped(b.addr)) {
				continue
			}
		}

		out := append([]byte(nil), b.addr...)
		outPrefix := b.prefix

		if it.policy == V6AsV4 && it.set.family == FamilyV6 {
			if b.prefix >= 96 && isV4Mapped(b.addr) {
				out = toV4(out)
				outPrefix = b.prefix - 96
			} else {
				continue
			}
		}
		if it.policy == V6Force && it.set.family == FamilyV4 {
			out = toV6(out)
			outPrefix = b.prefix + 96
		}

		return out, outPrefix, nil
	}
	return nil, 0, ErrNotFound
}

// Walk calls fn once per block in address order, stopping early if fn
// returns false.
func (s *IPSet) Walk(fn func(addr []byte, prefix int) bool) error {
	if s.dirty || s.arr == nil {
		return ErrRequireClean
	}
	for _, b := range s.arr.blocks {
		if !fn(b.addr, b.prefix) {
			break
		}
	}
	return nil
}
