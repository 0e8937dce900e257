package bag

import "github.com/movsoftware/libsilk/internal/rbtree"

// Bag is a sparse associative array from a fixed-width unsigned key to a
// 64-bit counter. Keys of 1, 2, or 4 octets are stored in a narrow radix
// tree; 16-octet (IPv6-width) keys switch to a red-black tree.
type Bag struct {
	keyType     string
	counterType string
	keyWidth    int
	counterWidth int

	radix *radixTree
	wide  *rbtree.Tree

	noAutoConvert bool
	generation    uint64
}

// Create allocates an empty Bag with the given key/counter type names and
// explicit widths.
func Create(keyType, counterType string, keyOctets, counterOctets int) (*Bag, error) {
	if !isLegalWidth(keyOctets) {
		return nil, ErrInput
	}
	b := &Bag{
		keyType:      keyType,
		counterType:  counterType,
		keyWidth:     keyOctets,
		counterWidth: counterOctets,
	}
	if keyOctets == 16 {
		b.wide = rbtree.New(524288)
	} else {
		b.radix = newRadixTree(keyOctets)
	}
	return b, nil
}

func isLegalWidth(w int) bool {
	for _, lw := range legalKeyWidths {
		if w == lw {
			return true
		}
	}
	return false
}

// Destroy releases b's storage. Subsequent use is undefined.
func (b *Bag) Destroy() {
	b.radix = nil
	b.wide = nil
}

// KeyWidth returns the Bag's current key width in octets.
func (b *Bag) KeyWidth() int { return b.keyWidth }

// CounterWidth returns the Bag's counter width in octets.
func (b *Bag) CounterWidth() int { return b.counterWidth }

// NoAutoConvertEnable/Disable toggle whether an out-of-range key widens the
// Bag automatically (default: enabled) or fails KeyRange.
func (b *Bag) NoAutoConvertEnable()  { b.noAutoConvert = true }
func (b *Bag) NoAutoConvertDisable() { b.noAutoConvert = false }

// Clear empties the Bag back to its just-created state, keeping width/type.
func (b *Bag) Clear() {
	if b.keyWidth == 16 {
		b.wide = rbtree.New(524288)
	} else {
		b.radix = newRadixTree(b.keyWidth)
	}
	b.generation++
}

// Copy returns a deep copy of b.
func (b *Bag) Copy() *Bag {
	out := &Bag{
		keyType:       b.keyType,
		counterType:   b.counterType,
		keyWidth:      b.keyWidth,
		counterWidth:  b.counterWidth,
		noAutoConvert: b.noAutoConvert,
	}
	if b.keyWidth == 16 {
		out.wide = rbtree.New(524288)
		b.wide.Each(func(k rbtree.Key, v uint64) bool {
			out.wide.Set(k, v)
			return true
		})
	} else {
		out.radix = newRadixTree(b.keyWidth)
		b.radix.each(func(key []byte, value uint64) bool {
			padded := append([]byte(nil), key...)
			out.radix.set(padded, value)
			return true
		})
	}
	return out
}

// toWideKey zero-extends a key of b.keyWidth bytes to a 16-byte rbtree.Key.
func toWideKey(key []byte, width int) rbtree.Key {
	var out rbtree.Key
	copy(out[16-width:], key)
	return out
}

// keyFitsCurrentWidth reports whether key (a full-width, up-to-16-byte big-
// endian integer) fits b's current representation without widening.
func (b *Bag) keyFitsCurrentWidth(wide [16]byte) bool {
	return fitsWidth(wide, b.keyWidth)
}

// ensureWidthFor widens b if necessary to hold wide, honoring NoAutoConvert.
func (b *Bag) ensureWidthFor(wide [16]byte) error {
	if b.keyFitsCurrentWidth(wide) {
		return nil
	}
	if b.noAutoConvert {
		return ErrKeyRange
	}
	target := b.keyWidth
	for target != 16 && !fitsWidth(wide, target) {
		target = nextWidth(target)
	}
	return b.widen(target)
}

// Modify rebuilds b into a new key/counter shape, copying every entry.
// Fails KeyRange without mutating b if a key would not fit the new width.
func (b *Bag) Modify(newKeyType, newCounterType string, newKeyOctets, newCounterOctets int) error {
	if !isLegalWidth(newKeyOctets) {
		return ErrInput
	}

	var pairs []struct {
		key   [16]byte
		value uint64
	}
	if b.keyWidth == 16 {
		b.wide.Each(func(k rbtree.Key, v uint64) bool {
			pairs = append(pairs, struct {
				key   [16]byte
				value uint64
			}{[16]byte(k), v})
			return true
		})
	} else {
		b.radix.each(func(key []byte, value uint64) bool {
			pairs = append(pairs, struct {
				key   [16]byte
				value uint64
			}{toWideKey(key, b.keyWidth), value})
			return true
		})
	}

	for _, p := range pairs {
		if !fitsWidth(p.key, newKeyOctets) {
			return ErrKeyRange
		}
	}

	var newRadix *radixTree
	var newWide *rbtree.Tree
	if newKeyOctets == 16 {
		newWide = rbtree.New(524288)
		for _, p := range pairs {
			newWide.Set(rbtree.Key(p.key), p.value)
		}
	} else {
		newRadix = newRadixTree(newKeyOctets)
		for _, p := range pairs {
			newRadix.set(p.key[16-newKeyOctets:], p.value)
		}
	}

	b.keyType = newKeyType
	b.counterType = newCounterType
	b.keyWidth = newKeyOctets
	b.counterWidth = newCounterOctets
	b.radix = newRadix
	b.wide = newWide
	return nil
}

// CountKeys returns the number of entries with a nonzero counter.
func (b *Bag) CountKeys() int {
	if b.keyWidth == 16 {
		n := 0
		b.wide.Each(func(rbtree.Key, uint64) bool { n++; return true })
		return n
	}
	return b.radix.countKeys()
}
