package bag

import "github.com/movsoftware/libsilk/internal/rbtree"

// legalKeyWidths are the only key widths a Bag can hold: 1, 2, or 4 octets
// in the narrow radix tree, or 16 octets, which switches representation
// entirely, to the red-black tree.
var legalKeyWidths = []int{1, 2, 4, 16}

// fitsWidth reports whether key (already zero-extended to 16 bytes, with the
// significant bytes trailing) fits within width octets, i.e. every byte
// before the last width bytes is zero.
func fitsWidth(key [16]byte, width int) bool {
	for i := 0; i < 16-width; i++ {
		if key[i] != 0 {
			return false
		}
	}
	return true
}

// nextWidth returns the smallest legal width strictly greater than width,
// or 0 if none (width is already 16).
func nextWidth(width int) int {
	for _, w := range legalKeyWidths {
		if w > width {
			return w
		}
	}
	return 0
}

// widen rebuilds b at a larger key width (or switches to the wide red-black
// representation at 16), copying every existing entry. It never partially
// mutates b: the new storage is built fully before being swapped in.
func (b *Bag) widen(newWidth int) error {
	if newWidth == 16 {
		tree := rbtree.New(524288)
		if b.keyWidth == 16 {
			return nil
		}
		b.radix.each(func(key []byte, value uint64) bool {
			var wide [16]byte
			copy(wide[16-b.keyWidth:], key)
			tree.Set(rbtree.Key(wide), value)
			return true
		})
		b.wide = tree
		b.radix = nil
		b.keyWidth = 16
		return nil
	}

	out := newRadixTree(newWidth)
	b.radix.each(func(key []byte, value uint64) bool {
		padded := make([]byte, newWidth)
		copy(padded[newWidth-b.keyWidth:], key)
		out.set(padded, value)
		return true
	})
	b.radix = out
	b.keyWidth = newWidth
	return nil
}
