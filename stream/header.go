package stream

import (
	"encoding/binary"
	"io"

	"github.com/noxer/bytewriter"
)

// headerMagic is the fixed 4-byte, big-endian magic number every binary file
// opens with.
const headerMagic uint32 = 0x534c4b31 // "SLK1"

// Format identifies the payload encoded by a stream.
type Format uint8

const (
	FormatFlow  Format = 0x01
	FormatText  Format = 0x02
	FormatIPSet Format = 0x1D
	FormatBag   Format = 0x21
)

// Compression identifies the block compression method used for the stream
// body.
type Compression uint8

const (
	CompNone   Compression = 0
	CompZlib   Compression = 1
	CompLZO1X  Compression = 2
	CompSnappy Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZlib:
		return "zlib"
	case CompLZO1X:
		return "lzo1x"
	case CompSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// defaultBlockSize is the uncompressed I/O block size, and the size each
// LZO1X/snappy frame decompresses into.
const defaultBlockSize = 64 * 1024

// HeaderEntry is one typed key/length/payload record following the fixed
// header prefix.
type HeaderEntry struct {
	ID      uint32
	Payload []byte
}

// EntryCodec is the capability interface higher-level packages (bag, ipset)
// register against a header entry ID, in place of a function-pointer
// registration table.
type EntryCodec interface {
	// Pack encodes the entry's payload (not including the id/length prefix).
	Pack() ([]byte, error)
	// Unpack decodes payload into the receiver.
	Unpack(payload []byte) error
}

type entryFactory func() EntryCodec

var entryRegistry = map[uint32]entryFactory{}

// RegisterEntryType associates an entry ID with a constructor for its codec.
// Packages call this from init() — the bag package registers ID 6 for its
// metadata entry, ipset registers ID 5 for its own.
func RegisterEntryType(id uint32, factory func() EntryCodec) {
	entryRegistry[id] = factory
}

// Header is the fixed prefix plus header-entry sequence written once at
// stream creation and read once at stream open.
type Header struct {
	IsBigEndian   bool
	Compression   Compression
	Format        Format
	RecordVersion uint8
	RecordLength  uint32
	Entries       []HeaderEntry
}

// byteOrder returns the binary.ByteOrder implied by h.IsBigEndian.
func (h *Header) byteOrder() binary.ByteOrder {
	if h.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DecodedEntries runs each registered EntryCodec's Unpack over the matching
// raw header entries, skipping unknown IDs.
func (h *Header) DecodedEntries() (map[uint32]EntryCodec, error) {
	out := make(map[uint32]EntryCodec, len(h.Entries))
	for _, raw := range h.Entries {
		factory, ok := entryRegistry[raw.ID]
		if !ok {
			continue
		}
		codec := factory()
		if err := codec.Unpack(raw.Payload); err != nil {
			return nil, ErrHeader.Wrap(err)
		}
		out[raw.ID] = codec
	}
	return out, nil
}

// SetEntry encodes codec and appends (or replaces) the entry with the given
// id. Callers must do this before WriteHeader.
func (h *Header) SetEntry(id uint32, codec EntryCodec) error {
	payload, err := codec.Pack()
	if err != nil {
		return err
	}
	for i := range h.Entries {
		if h.Entries[i].ID == id {
			h.Entries[i].Payload = payload
			return nil
		}
	}
	h.Entries = append(h.Entries, HeaderEntry{ID: id, Payload: payload})
	return nil
}

// encode serializes the fixed prefix and entry table into a single buffer,
// assembled with bytewriter the same way file_systems/unixv1/format.go
// assembles a fixed-size superblock record before a single write.
func (h *Header) encode() ([]byte, error) {
	order := h.byteOrder()

	entriesLen := 0
	for _, e := range h.Entries {
		entriesLen += 8 + len(e.Payload)
	}
	entriesLen += 8 // terminator entry, id=0 length=8

	buf := make([]byte, 12+entriesLen)
	w := bytewriter.New(buf)

	var magicBuf [4]byte
	binary.BigEndian.PutUint32(magicBuf[:], headerMagic)
	if _, err := w.Write(magicBuf[:]); err != nil {
		return nil, err
	}

	var flag byte
	if h.IsBigEndian {
		flag = 1
	}
	if _, err := w.Write([]byte{flag, byte(h.Compression), byte(h.Format), h.RecordVersion}); err != nil {
		return nil, err
	}

	var recLenBuf [4]byte
	order.PutUint32(recLenBuf[:], h.RecordLength)
	if _, err := w.Write(recLenBuf[:]); err != nil {
		return nil, err
	}

	for _, e := range h.Entries {
		var idLen [8]byte
		order.PutUint32(idLen[0:4], e.ID)
		order.PutUint32(idLen[4:8], uint32(8+len(e.Payload)))
		if _, err := w.Write(idLen[:]); err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Payload); err != nil {
			return nil, err
		}
	}

	var term [8]byte
	order.PutUint32(term[0:4], 0)
	order.PutUint32(term[4:8], 8)
	if _, err := w.Write(term[:]); err != nil {
		return nil, err
	}

	return buf, nil
}

// decodeHeader reads the fixed prefix and entry table from r.
func decodeHeader(r io.Reader) (*Header, error) {
	var prefix [12]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, ErrHeader.Wrap(err)
	}

	magic := binary.BigEndian.Uint32(prefix[0:4])
	if magic != headerMagic {
		return nil, ErrBadMagic
	}

	h := &Header{
		IsBigEndian:   prefix[4] != 0,
		Compression:   Compression(prefix[5]),
		Format:        Format(prefix[6]),
		RecordVersion: prefix[7],
	}
	order := h.byteOrder()
	h.RecordLength = order.Uint32(prefix[8:12])

	for {
		var idLen [8]byte
		if _, err := io.ReadFull(r, idLen[:]); err != nil {
			return nil, ErrHeader.Wrap(err)
		}
		id := order.Uint32(idLen[0:4])
		length := order.Uint32(idLen[4:8])
		if id == 0 {
			break
		}
		if length < 8 {
			return nil, ErrHeader
		}
		payload := make([]byte, length-8)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ErrHeader.Wrap(err)
		}
		h.Entries = append(h.Entries, HeaderEntry{ID: id, Payload: payload})
	}

	return h, nil
}
