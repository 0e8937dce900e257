package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryRoundTripNoCompression(t *testing.T) {
	buf := make([]byte, 4096)

	w := Create(ModeWrite, ContentBinary)
	assert.NoError(t, w.BindBytes(buf))
	assert.NoError(t, w.Open())
	w.Header().Format = FormatFlow
	w.Header().RecordVersion = 5
	assert.NoError(t, w.WriteHeader())
	n, err := w.Write([]byte("hello record"))
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, w.Close())

	r := Create(ModeRead, ContentBinary)
	assert.NoError(t, r.BindBytes(buf))
	assert.NoError(t, r.Open())
	h, err := r.ReadHeader()
	assert.NoError(t, err)
	assert.Equal(t, FormatFlow, h.Format)

	got := make([]byte, 12)
	assert.NoError(t, r.readFull(got))
	assert.Equal(t, "hello record", string(got))
}

func TestRoundTripWithZlibCompression(t *testing.T) {
	buf := make([]byte, 8192)

	w := Create(ModeWrite, ContentBinary)
	assert.NoError(t, w.BindBytes(buf))
	assert.NoError(t, w.Open())
	w.Header().Format = FormatBag
	w.Header().Compression = CompZlib
	w.Header().RecordVersion = 4
	assert.NoError(t, w.WriteHeader())
	payload := []byte("repeated repeated repeated payload bytes")
	_, err := w.Write(payload)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	r := Create(ModeRead, ContentBinary)
	assert.NoError(t, r.BindBytes(buf))
	assert.NoError(t, r.Open())
	_, err = r.ReadHeader()
	assert.NoError(t, err)

	got := make([]byte, len(payload))
	assert.NoError(t, r.readFull(got))
	assert.Equal(t, payload, got)
}

func TestV2WithCompressionUpgradesToV3(t *testing.T) {
	buf := make([]byte, 4096)

	w := Create(ModeWrite, ContentBinary)
	assert.NoError(t, w.BindBytes(buf))
	assert.NoError(t, w.Open())
	w.Header().RecordVersion = 2
	w.Header().Compression = CompZlib
	assert.NoError(t, w.WriteHeader())
	assert.Equal(t, uint8(3), w.Header().RecordVersion)
}

func TestTextLineSkipsBlankAndComments(t *testing.T) {
	buf := make([]byte, 4096)

	w := Create(ModeWrite, ContentText)
	assert.NoError(t, w.BindBytes(buf))
	assert.NoError(t, w.Open())
	w.Header().Format = FormatText
	assert.NoError(t, w.WriteHeader())
	_, err := w.Write([]byte("first line\n# a comment\n\nsecond line\n"))
	assert.NoError(t, err)
	end, err := w.Tell()
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	// Read back only the bytes written, not the zero-filled rest of buf.
	r := Create(ModeRead, ContentText)
	assert.NoError(t, r.BindBytes(buf[:end]))
	assert.NoError(t, r.Open())
	_, err = r.ReadHeader()
	assert.NoError(t, err)
	r.SetCommentPrefix("#")

	var counter int
	line, err := r.ReadLine(&counter)
	assert.NoError(t, err)
	assert.Equal(t, "first line", line)

	line, err = r.ReadLine(&counter)
	assert.NoError(t, err)
	assert.Equal(t, "second line", line)

	_, err = r.ReadLine(&counter)
	assert.ErrorIs(t, err, Error(ErrEOF))
}

func TestDoubleOpenFails(t *testing.T) {
	buf := make([]byte, 1024)
	s := Create(ModeWrite, ContentBinary)
	assert.NoError(t, s.BindBytes(buf))
	assert.NoError(t, s.Open())
	assert.ErrorIs(t, s.Open(), Error(ErrAlreadyOpen))
}
