package ipset

// Family is the address family an IPSet currently holds.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) width() int {
	if f == FamilyV6 {
		return 128
	}
	return 32
}

func (f Family) addrLen() int {
	if f == FamilyV6 {
		return 16
	}
	return 4
}

// V6Policy controls how a mixed-family iteration presents IPv4 members.
type V6Policy int

const (
	V6Mix V6Policy = iota
	V6Force
	V6AsV4
	V6Ignore
	V6Only
)

// IPSet is a mutable CIDR set for one address family. Insert/Remove operate
// directly on the tree layout; Clean() linearizes into a sorted array that
// Contains, iteration, and serialization prefer once present and in sync.
type IPSet struct {
	family Family
	t      *trie

	dirty     bool
	arr       *sortedArray
	autoConv  bool
	count     uint64
}

// Create allocates an empty IPSet for family.
func Create(family Family) *IPSet {
	s := &IPSet{family: family, autoConv: true}
	s.t = newTrie(family.width())
	s.arr = nil
	s.dirty = false
	return s
}

// Destroy releases the set's storage. Subsequent use is undefined.
func (s *IPSet) Destroy() {
	s.t = nil
	s.arr = nil
}

// Family reports the set's current address family.
func (s *IPSet) Family() Family { return s.family }

// IsClean reports whether the set is in the array layout (Clean has run
// since the last mutation).
func (s *IPSet) IsClean() bool { return !s.dirty && s.arr != nil }

// Clear empties the set back to its just-created state, keeping the family.
func (s *IPSet) Clear() {
	s.t = newTrie(s.family.width())
	s.arr = nil
	s.dirty = false
	s.count = 0
}

// Copy returns a deep copy of s.
func (s *IPSet) Copy() *IPSet {
	out := &IPSet{family: s.family, autoConv: s.autoConv, count: s.count}
	out.t = s.t.clone()
	if s.arr != nil {
		clone := *s.arr
		clone.blocks = append([]cidrBlock(nil), s.arr.blocks...)
		out.arr = &clone
	}
	out.dirty = s.dirty
	return out
}

// AutoConvertEnable/Disable/IsEnabled govern whether IPv4-mapped IPv6
// addresses are silently demoted to v4 on insertion into a v4 set, and
// whether IPv4 input is silently promoted into a v6 set. Auto-convert
// defaults on.
func (s *IPSet) AutoConvertEnable()     { s.autoConv = true }
func (s *IPSet) AutoConvertDisable()    { s.autoConv = false }
func (s *IPSet) AutoConvertIsEnabled() bool { return s.autoConv }

// markDirty invalidates the clean array layout after a tree mutation.
func (s *IPSet) markDirty() {
	s.dirty = true
}
