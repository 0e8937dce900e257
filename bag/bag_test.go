package bag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/movsoftware/libsilk/stream"
)

func key4(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func key2(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// TestAddSubBoundsAndRemoval checks overflow bounds and removal-on-zero.
func TestAddSubBoundsAndRemoval(t *testing.T) {
	b, err := Create("sipv4", "packets", 4, 8)
	assert.NoError(t, err)

	k := key4(0x0A000001)
	_, err = b.Add(k, 1)
	assert.NoError(t, err)

	v, err := b.Add(k, 0xFFFFFFFFFFFFFFFE)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), v)

	_, err = b.Add(k, 1)
	assert.ErrorIs(t, err, ErrOpBounds)

	got, _ := b.Get(k)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), got)

	v, err = b.Subtract(k, 0xFFFFFFFFFFFFFFFF)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	assert.Equal(t, 0, b.CountKeys())
}

// TestAutoWidenPreservesEntries checks that widening a narrow Bag to fit a
// bigger key keeps every previously-stored entry readable.
func TestAutoWidenPreservesEntries(t *testing.T) {
	b, err := Create("custom2", "packets", 2, 8)
	assert.NoError(t, err)

	_, err = b.Add(key2(0x1234), 7)
	assert.NoError(t, err)

	_, err = b.Add(key4(0x10000), 3)
	assert.NoError(t, err)

	assert.Equal(t, 4, b.KeyWidth())

	v, _ := b.Get(key4(0x1234))
	assert.Equal(t, uint64(7), v)
	v, _ = b.Get(key4(0x10000))
	assert.Equal(t, uint64(3), v)
}

func TestAddSubInverse(t *testing.T) {
	b, _ := Create("custom4", "packets", 4, 8)
	k := key4(42)

	v, err := b.Add(k, 100)
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), v)

	v, err = b.Subtract(k, 100)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, 0, b.CountKeys())
}

func TestSortedIteratorMonotonic(t *testing.T) {
	b, _ := Create("custom4", "packets", 4, 8)
	_, _ = b.Add(key4(300), 1)
	_, _ = b.Add(key4(5), 1)
	_, _ = b.Add(key4(100000), 1)

	it := IteratorCreateSorted(b)
	var last uint64
	count := 0
	for {
		k, _, err := it.Next()
		if err != nil {
			assert.ErrorIs(t, err, ErrKeyNotFound)
			break
		}
		v := uint64(k[0])<<24 | uint64(k[1])<<16 | uint64(k[2])<<8 | uint64(k[3])
		if count > 0 {
			assert.Greater(t, v, last)
		}
		last = v
		count++
	}
	assert.Equal(t, 3, count)
}

func TestModifyWidensWideKey(t *testing.T) {
	b, _ := Create("custom4", "packets", 4, 8)
	_, _ = b.Add(key4(7), 9)

	err := b.Modify("sipv6", "packets", 16, 8)
	assert.NoError(t, err)
	assert.Equal(t, 16, b.KeyWidth())

	var wide [16]byte
	wide[15] = 7
	v, _ := b.Get(wide[:])
	assert.Equal(t, uint64(9), v)
}

func TestWriteReadRoundTrip(t *testing.T) {
	b, _ := Create("custom4", "packets", 4, 8)
	_, _ = b.Add(key4(0x0A000001), 5)

	buf := make([]byte, 4096)
	st := stream.Create(stream.ModeWrite, stream.ContentBinary)
	assert.NoError(t, st.BindBytes(buf))
	assert.NoError(t, st.Open())
	assert.NoError(t, Write(b, st))
	assert.NoError(t, st.Close())

	r := stream.Create(stream.ModeRead, stream.ContentBinary)
	assert.NoError(t, r.BindBytes(buf))
	assert.NoError(t, r.Open())
	got, err := Read(r)
	assert.NoError(t, err)
	assert.Equal(t, 1, got.CountKeys())
	v, _ := got.Get(key4(0x0A000001))
	assert.Equal(t, uint64(5), v)
}

func TestCopyIsIndependent(t *testing.T) {
	b, _ := Create("custom4", "packets", 4, 8)
	_, _ = b.Add(key4(1), 10)

	clone := b.Copy()
	_, _ = b.Add(key4(1), 5)

	v, _ := clone.Get(key4(1))
	assert.Equal(t, uint64(10), v)
	v, _ = b.Get(key4(1))
	assert.Equal(t, uint64(15), v)
}
