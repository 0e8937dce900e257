package ipset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/movsoftware/libsilk/stream"
)

func v4(a, b, c, d byte) []byte { return []byte{a, b, c, d} }

func TestInsertContains(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 0, 0), 8))

	ok, err := s.Contains(v4(10, 1, 2, 3))
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Contains(v4(11, 0, 0, 0))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveSplitsEnclosingLeaf(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 0, 0), 8))
	assert.NoError(t, s.Remove(v4(10, 5, 0, 0), 16))

	ok, _ := s.Contains(v4(10, 5, 1, 1))
	assert.False(t, ok)
	ok, _ = s.Contains(v4(10, 6, 1, 1))
	assert.True(t, ok)
}

func TestCleanMergesAdjacentLeaves(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(192, 168, 0, 0), 25))
	assert.NoError(t, s.Insert(v4(192, 168, 0, 128), 25))
	assert.NoError(t, s.Clean())

	assert.Equal(t, 1, s.arr.len())
	assert.Equal(t, 24, s.arr.blocks[0].prefix)
}

// TestMaskLeavesOnlyBlockBaseHosts checks that mask(16) on a set containing
// 32.32.0.0/15 leaves only the two contained /16 blocks' base addresses as
// single hosts, not the /16 blocks themselves.
func TestMaskLeavesOnlyBlockBaseHosts(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(32, 32, 0, 0), 15))
	assert.NoError(t, s.Mask(16))
	assert.NoError(t, s.Clean())

	assert.Len(t, s.arr.blocks, 2)
	for _, b := range s.arr.blocks {
		assert.Equal(t, 32, b.prefix)
	}

	ok, _ := s.Contains(v4(32, 32, 0, 0))
	assert.True(t, ok)
	ok, _ = s.Contains(v4(32, 32, 5, 5))
	assert.False(t, ok)
	ok, _ = s.Contains(v4(32, 33, 0, 0))
	assert.True(t, ok)
	ok, _ = s.Contains(v4(32, 33, 5, 5))
	assert.False(t, ok)
}

// TestMaskScenarioS1 follows spec scenario S1: mask(16) over a mixed set of
// hosts and blocks leaves exactly the five /32 base-address hosts named in
// the scenario, in ascending order.
func TestMaskScenarioS1(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 0, 23), 32))
	assert.NoError(t, s.Insert(v4(10, 0, 1, 0), 24))
	assert.NoError(t, s.Insert(v4(10, 7, 1, 0), 24))
	assert.NoError(t, s.Insert(v4(20, 20, 0, 243), 32))
	assert.NoError(t, s.Insert(v4(32, 32, 0, 0), 15))

	assert.NoError(t, s.Mask(16))
	assert.NoError(t, s.Clean())

	assert.Len(t, s.arr.blocks, 5)
	for _, b := range s.arr.blocks {
		assert.Equal(t, 32, b.prefix)
	}

	want := [][]byte{
		v4(10, 0, 0, 0),
		v4(10, 7, 0, 0),
		v4(20, 20, 0, 0),
		v4(32, 32, 0, 0),
		v4(32, 33, 0, 0),
	}
	for i, addr := range want {
		ok, err := s.Contains(addr)
		assert.NoError(t, err)
		assert.True(t, ok)
		if i < len(s.arr.blocks) {
			assert.Equal(t, addr, s.arr.blocks[i].addr)
		}
	}
}

// TestMaskAndFillScenarioS2 follows spec scenario S2: mask_and_fill(16) over
// the same S1 input set leaves the four named blocks fully filled.
func TestMaskAndFillScenarioS2(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 0, 23), 32))
	assert.NoError(t, s.Insert(v4(10, 0, 1, 0), 24))
	assert.NoError(t, s.Insert(v4(10, 7, 1, 0), 24))
	assert.NoError(t, s.Insert(v4(20, 20, 0, 243), 32))
	assert.NoError(t, s.Insert(v4(32, 32, 0, 0), 15))

	assert.NoError(t, s.MaskAndFill(16))
	assert.NoError(t, s.Clean())

	assert.Len(t, s.arr.blocks, 4)

	wantPrefixes := map[string]int{
		string(v4(10, 0, 0, 0)):  16,
		string(v4(10, 7, 0, 0)):  16,
		string(v4(20, 20, 0, 0)): 16,
		string(v4(32, 32, 0, 0)): 15,
	}
	for _, b := range s.arr.blocks {
		wantPrefix, ok := wantPrefixes[string(b.addr)]
		assert.True(t, ok, "unexpected block base %v", b.addr)
		assert.Equal(t, wantPrefix, b.prefix)
	}
}

// TestMaskAndFillPreservesShallowBlocks checks that a /15 already shallower
// than the target depth is left untouched by mask_and_fill(16) rather than
// split.
func TestMaskAndFillPreservesShallowBlocks(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(32, 32, 0, 0), 15))
	assert.NoError(t, s.MaskAndFill(16))
	assert.NoError(t, s.Clean())

	assert.Len(t, s.arr.blocks, 1)
	assert.Equal(t, 15, s.arr.blocks[0].prefix)
}

func TestUnionIntersectSubtract(t *testing.T) {
	a := Create(FamilyV4)
	assert.NoError(t, a.Insert(v4(10, 0, 0, 0), 24))
	assert.NoError(t, a.Insert(v4(10, 0, 1, 0), 24))

	b := Create(FamilyV4)
	assert.NoError(t, b.Insert(v4(10, 0, 1, 0), 24))
	assert.NoError(t, b.Insert(v4(10, 0, 2, 0), 24))

	union := a.Copy()
	assert.NoError(t, UnionInto(union, b))
	assert.NoError(t, union.Clean())
	assert.Len(t, union.arr.blocks, 2)

	inter := a.Copy()
	assert.NoError(t, IntersectInto(inter, b))
	assert.NoError(t, inter.Clean())
	assert.Len(t, inter.arr.blocks, 1)
	ok, _ := inter.Contains(v4(10, 0, 1, 1))
	assert.True(t, ok)

	sub := a.Copy()
	assert.NoError(t, SubtractInto(sub, b))
	assert.NoError(t, sub.Clean())
	assert.Len(t, sub.arr.blocks, 1)
	ok, _ = sub.Contains(v4(10, 0, 0, 1))
	assert.True(t, ok)
	ok, _ = sub.Contains(v4(10, 0, 1, 1))
	assert.False(t, ok)
}

func TestConvertV4ToV6AndBack(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(192, 0, 2, 0), 24))

	assert.NoError(t, s.Convert(FamilyV6))
	assert.Equal(t, FamilyV6, s.Family())

	mapped := toV6(v4(192, 0, 2, 1))
	ok, err := s.Contains(mapped)
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, s.Convert(FamilyV4))
	assert.Equal(t, FamilyV4, s.Family())
	ok, err = s.Contains(v4(192, 0, 2, 1))
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(172, 16, 0, 0), 12))
	assert.NoError(t, s.Clean())

	buf := make([]byte, 0, 4096)
	buf = buf[:cap(buf)]
	st := stream.Create(stream.ModeWrite, stream.ContentBinary)
	assert.NoError(t, st.BindBytes(buf))
	assert.NoError(t, st.Open())
	assert.NoError(t, Write(s, st))
	assert.NoError(t, st.Close())

	r := stream.Create(stream.ModeRead, stream.ContentBinary)
	assert.NoError(t, r.BindBytes(buf))
	assert.NoError(t, r.Open())
	got, err := Read(r)
	assert.NoError(t, err)
	assert.Equal(t, s.arr.blocks, got.arr.blocks)
}

func TestIteratorWalksInOrder(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 2, 0), 24))
	assert.NoError(t, s.Insert(v4(10, 0, 1, 0), 24))
	assert.NoError(t, s.Clean())

	it, err := IteratorBind(s, V6Mix)
	assert.NoError(t, err)

	addr, prefix, err := it.Next()
	assert.NoError(t, err)
	assert.Equal(t, 24, prefix)
	assert.Equal(t, byte(1), addr[2])

	_, _, err = it.Next()
	assert.NoError(t, err)

	_, _, err = it.Next()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountAgreesWithWalker(t *testing.T) {
	s := Create(FamilyV4)
	assert.NoError(t, s.Insert(v4(10, 0, 0, 0), 30)) // 4 addresses
	assert.NoError(t, s.Insert(v4(20, 20, 0, 243), 32))
	assert.NoError(t, s.Clean())

	total, shadow, err := s.Count()
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), total)
	assert.Equal(t, float64(5), shadow)

	var walked uint64
	it, err := IteratorBind(s, V6Mix)
	assert.NoError(t, err)
	for {
		_, prefix, err := it.Next()
		if err != nil {
			break
		}
		walked += 1 << uint(32-prefix)
	}
	assert.Equal(t, total, walked)
}

func TestIntersectsAcrossFamilies(t *testing.T) {
	a := Create(FamilyV4)
	assert.NoError(t, a.Insert(v4(192, 0, 2, 0), 24))

	b := Create(FamilyV6)
	assert.NoError(t, b.Insert(toV6(v4(192, 0, 2, 5)), 128))

	ok, err := Intersects(a, b)
	assert.NoError(t, err)
	assert.True(t, ok)
}
