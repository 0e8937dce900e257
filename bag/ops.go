package bag

import "github.com/movsoftware/libsilk/internal/rbtree"

// normalizeKey converts a caller-supplied key (any legal width: 1, 2, 4, or
// 16 bytes, big endian) into its 16-byte zero-extended form for width
// comparisons. The key's own length need not match b's current width: a
// wider key than the Bag currently holds is exactly what drives
// ensureWidthFor's auto-widen below.
func (b *Bag) normalizeKey(key []byte) ([16]byte, error) {
	if !isLegalWidth(len(key)) {
		return [16]byte{}, ErrInput
	}
	return toWideKey(key, len(key)), nil
}

// Get returns the counter for key, or zero if absent. Never allocates.
func (b *Bag) Get(key []byte) (uint64, error) {
	if len(key) != b.keyWidth {
		return 0, ErrInput
	}
	return b.getWide(toWideKey(key, b.keyWidth)), nil
}

// getWide reads the counter for a 16-byte zero-extended key against b's
// current representation, regardless of the byte length the caller
// originally supplied the key in.
func (b *Bag) getWide(wide [16]byte) uint64 {
	if b.keyWidth == 16 {
		v, _ := b.wide.Find(rbtree.Key(wide))
		return v
	}
	return b.radix.get(wide[16-b.keyWidth:])
}

// setWide stores value against a 16-byte zero-extended key that the caller
// has already confirmed fits b's current width (via ensureWidthFor).
func (b *Bag) setWide(wide [16]byte, value uint64) {
	if b.keyWidth == 16 {
		if value == 0 {
			b.wide.Delete(rbtree.Key(wide))
		} else {
			b.wide.Set(rbtree.Key(wide), value)
		}
		return
	}
	narrow := wide[16-b.keyWidth:]
	b.radix.set(narrow, value)
}

// Set stores value for key; value 0 deletes the entry. A key wider than the
// Bag's current width auto-widens the Bag first (unless NoAutoConvert is
// set, in which case it fails KeyRange).
func (b *Bag) Set(key []byte, value uint64) error {
	wide, err := b.normalizeKey(key)
	if err != nil {
		return err
	}
	if !b.keyFitsCurrentWidth(wide) {
		if err := b.ensureWidthFor(wide); err != nil {
			return err
		}
	}
	b.setWide(wide, value)
	return nil
}

// Add adds delta to key's counter, failing OpBounds (leaving the Bag
// unchanged) on overflow past 2^64-1.
func (b *Bag) Add(key []byte, delta uint64) (uint64, error) {
	return b.arith(key, delta, true)
}

// Subtract subtracts delta from key's counter, failing OpBounds if the
// result would underflow. A result of exactly zero removes the entry.
func (b *Bag) Subtract(key []byte, delta uint64) (uint64, error) {
	return b.arith(key, delta, false)
}

func (b *Bag) arith(key []byte, delta uint64, isAdd bool) (uint64, error) {
	wide, err := b.normalizeKey(key)
	if err != nil {
		return 0, err
	}

	if !b.keyFitsCurrentWidth(wide) {
		if !isAdd {
			// Subtract never allocates or widens: a key outside the Bag's
			// current width was never insertable, so its counter reads as
			// zero and any positive delta underflows immediately.
			if delta == 0 {
				return 0, nil
			}
			return 0, ErrOpBounds
		}
		if err := b.ensureWidthFor(wide); err != nil {
			return 0, err
		}
	}

	old := b.getWide(wide)

	var result uint64
	if isAdd {
		result = old + delta
		if result < old {
			return old, ErrOpBounds
		}
	} else {
		if delta > old {
			return old, ErrOpBounds
		}
		result = old - delta
	}

	b.setWide(wide, result)
	return result, nil
}

// BoundsCallback is invoked by AddBag when an overflow would occur, and
// returns a replacement value to store instead (or an error to abort).
type BoundsCallback func(key []byte, dstValue, srcValue uint64) (uint64, error)

// AddBag adds every entry of src into dst. On overflow for a given key, cb
// (if non-nil) is invoked with the key and the two counters and its return
// value is stored; a nil cb propagates OpBounds for that key but continues
// with the rest.
func AddBag(dst, src *Bag, cb BoundsCallback) error {
	var firstErr error
	src.each(func(key []byte, value uint64) bool {
		old, err := dst.Get(key)
		if err != nil {
			// key width mismatch: widen dst to accommodate.
			wide, nerr := dst.normalizeKeyForeign(key, src.keyWidth)
			if nerr != nil {
				firstErr = nerr
				return true
			}
			if werr := dst.ensureWidthFor(wide); werr != nil {
				firstErr = werr
				return true
			}
			old, _ = dst.Get(padToWidth(key, src.keyWidth, dst.keyWidth))
		}

		sum := old + value
		if sum < old {
			if cb == nil {
				firstErr = ErrOpBounds
				return true
			}
			replaced, err := cb(key, old, value)
			if err != nil {
				firstErr = err
				return true
			}
			sum = replaced
		}
		_ = dst.Set(padToWidth(key, src.keyWidth, dst.keyWidth), sum)
		return true
	})
	return firstErr
}

// each visits every (key, value) pair of b in its natural representation
// order (ascending for both narrow and wide storage).
func (b *Bag) each(fn func(key []byte, value uint64) bool) {
	if b.keyWidth == 16 {
		b.wide.Each(func(k rbtree.Key, v uint64) bool {
			kk := [16]byte(k)
			return fn(kk[:], v)
		})
		return
	}
	b.radix.each(fn)
}

// normalizeKeyForeign zero-extends a key of a different width than b's
// current width, for cross-Bag operations like AddBag.
func (b *Bag) normalizeKeyForeign(key []byte, width int) ([16]byte, error) {
	if len(key) != width {
		return [16]byte{}, ErrInput
	}
	return toWideKey(key, width), nil
}

// padToWidth re-expresses key (srcWidth bytes) as dstWidth bytes. A narrower
// dstWidth drops leading bytes, which the caller has already confirmed are
// zero via ensureWidthFor.
func padToWidth(key []byte, srcWidth, dstWidth int) []byte {
	if srcWidth == dstWidth {
		return key
	}
	if srcWidth > dstWidth {
		return key[srcWidth-dstWidth:]
	}
	out := make([]byte, dstWidth)
	copy(out[dstWidth-srcWidth:], key)
	return out
}
