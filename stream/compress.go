package stream

import (
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	lzo "github.com/rasky/go-lzo"
)

// newBodyReader wraps the raw, post-header byte source according to the
// stream's negotiated compression method.
func newBodyReader(raw io.Reader, comp Compression, order binary.ByteOrder) (io.Reader, error) {
	switch comp {
	case CompNone:
		return raw, nil
	case CompZlib:
		zr, err := zlib.NewReader(raw)
		if err != nil {
			return nil, ErrZlib.Wrap(err)
		}
		return zr, nil
	case CompLZO1X:
		return newBlockReader(raw, order, lzoDecompressBlock), nil
	case CompSnappy:
		return newBlockReader(raw, order, snappyDecompressBlock), nil
	default:
		return nil, ErrCompressInvalid
	}
}

// newBodyWriter wraps the raw, post-header byte sink according to the stream's
// negotiated compression method. The returned io.WriteCloser's Close flushes
// any buffered compressed data but (per the Stream/Close split in
// stream.go) never closes the underlying raw writer itself.
func newBodyWriter(raw io.Writer, comp Compression, order binary.ByteOrder) (io.WriteCloser, error) {
	switch comp {
	case CompNone:
		return nopWriteCloser{raw}, nil
	case CompZlib:
		return zlib.NewWriter(raw), nil
	case CompLZO1X:
		return newBlockWriter(raw, order, lzoCompressBlock), nil
	case CompSnappy:
		return newBlockWriter(raw, order, snappyCompressBlock), nil
	default:
		return nil, ErrCompressInvalid
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// --- LZO1X / snappy block framing -------------------------------------------
//
// Body is a sequence of (u32 compressed-length, bytes) blocks. Each block
// decompresses into a buffer of at most defaultBlockSize bytes.

type decompressFunc func(compressed []byte) ([]byte, error)
type compressFunc func(plain []byte) ([]byte, error)

func lzoCompressBlock(plain []byte) ([]byte, error) {
	return lzo.Compress1X(plain)
}

func lzoDecompressBlock(compressed []byte) ([]byte, error) {
	return lzo.Decompress1X(compressed, defaultBlockSize)
}

func snappyCompressBlock(plain []byte) ([]byte, error) {
	return snappy.Encode(nil, plain), nil
}

func snappyDecompressBlock(compressed []byte) ([]byte, error) {
	return snappy.Decode(nil, compressed)
}

type blockReader struct {
	raw     io.Reader
	order   binary.ByteOrder
	decode  decompressFunc
	pending []byte
	eof     bool
}

func newBlockReader(raw io.Reader, order binary.ByteOrder, decode decompressFunc) *blockReader {
	return &blockReader{raw: raw, order: order, decode: decode}
}

func (r *blockReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		var lenBuf [4]byte
		_, err := io.ReadFull(r.raw, lenBuf[:])
		if err == io.EOF {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			// A short read that isn't a clean block boundary: tolerated only
			// at block boundaries; anything else is a hard I/O error.
			if err == io.ErrUnexpectedEOF {
				return 0, ErrShortRead.Wrap(err)
			}
			return 0, ErrIORead.Wrap(err)
		}

		compressedLen := r.order.Uint32(lenBuf[:])
		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(r.raw, compressed); err != nil {
			return 0, ErrShortRead.Wrap(err)
		}

		plain, err := r.decode(compressed)
		if err != nil {
			return 0, ErrIORead.Wrap(err)
		}
		r.pending = plain
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

type blockWriter struct {
	raw    io.Writer
	order  binary.ByteOrder
	encode compressFunc
}

func newBlockWriter(raw io.Writer, order binary.ByteOrder, encode compressFunc) *blockWriter {
	return &blockWriter{raw: raw, order: order, encode: encode}
}

func (w *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > defaultBlockSize {
			chunk = chunk[:defaultBlockSize]
		}

		compressed, err := w.encode(chunk)
		if err != nil {
			return total, ErrIOWrite.Wrap(err)
		}
		if len(compressed) > int(^uint32(0)) {
			return total, fmt.Errorf("compressed block too large: %d bytes", len(compressed))
		}

		var lenBuf [4]byte
		w.order.PutUint32(lenBuf[:], uint32(len(compressed)))
		if _, err := w.raw.Write(lenBuf[:]); err != nil {
			return total, ErrIOWrite.Wrap(err)
		}
		if _, err := w.raw.Write(compressed); err != nil {
			return total, ErrIOWrite.Wrap(err)
		}

		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

func (w *blockWriter) Close() error { return nil }
