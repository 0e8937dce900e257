package ipset

import "strconv"

// Wildcard is a dotted/colon-separated address pattern where any octet (or
// hextet) may be "*", a single value, or a "lo-hi" range. It is parsed once
// and expanded into CIDR blocks on demand.
type Wildcard struct {
	octets []octetSpec
	isV6   bool
}

type octetSpec struct {
	lo, hi int
}

// ParseWildcard parses a wildcard pattern such as "10.0-1.*.1".
func ParseWildcard(pattern string, isV6 bool) (*Wildcard, error) {
	sep := byte('.')
	base := 10
	width := 256
	if isV6 {
		sep = ':'
		base = 16
		width = 65536
	}

	var fields []string
	start := 0
	for i := 0; i <= len(pattern); i++ {
		if i == len(pattern) || pattern[i] == sep {
			fields = append(fields, pattern[start:i])
			start = i + 1
		}
	}

	w := &Wildcard{isV6: isV6}
	for _, f := range fields {
		if f == "*" {
			w.octets = append(w.octets, octetSpec{0, width - 1})
			continue
		}
		if idx := indexByte(f, '-'); idx >= 0 {
			lo, err := strconv.ParseInt(f[:idx], base, 32)
			if err != nil {
				return nil, ErrBadInput
			}
			hi, err := strconv.ParseInt(f[idx+1:], base, 32)
			if err != nil {
				return nil, ErrBadInput
			}
			w.octets = append(w.octets, octetSpec{int(lo), int(hi)})
			continue
		}
		v, err := strconv.ParseInt(f, base, 32)
		if err != nil {
			return nil, ErrBadInput
		}
		w.octets = append(w.octets, octetSpec{int(v), int(v)})
	}
	return w, nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// blocks expands w into the list of CIDR blocks it denotes, by decomposing
// each fixed-width field's [lo,hi] range and taking the cartesian product
// through decomposeRange on the fully-built low/high address pair. Ranges
// within separate fields are expanded independently because a wildcard's
// field ranges are never forced to move in lockstep; the simplifying
// restriction the historical tool itself imposed is a single contiguous
// range computed from the lowest and highest addresses the pattern can
// produce, re-decomposed as one CIDR run.
func (w *Wildcard) blocks(width int) []cidrBlock {
	fieldWidth := 8
	if w.isV6 {
		fieldWidth = 16
	}
	n := width / fieldWidth
	lo := make([]byte, width/8)
	hi := make([]byte, width/8)
	for i := 0; i < n && i < len(w.octets); i++ {
		writeField(lo, i, fieldWidth, w.octets[i].lo)
		writeField(hi, i, fieldWidth, w.octets[i].hi)
	}
	return decomposeRange(lo, hi, width)
}

func writeField(addr []byte, fieldIdx, fieldWidth, value int) {
	bytesPerField := fieldWidth / 8
	base := fieldIdx * bytesPerField
	for b := bytesPerField - 1; b >= 0; b-- {
		addr[base+b] = byte(value & 0xff)
		value >>= 8
	}
}
