package bag

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/movsoftware/libsilk/stream"
)

// metadataEntryID is the header entry id carrying a Bag's key/counter widths
// and type names.
const metadataEntryID = 6

func init() {
	stream.RegisterEntryType(metadataEntryID, func() stream.EntryCodec { return &metadataEntry{} })
}

type metadataEntry struct {
	keyWidth     uint8
	counterWidth uint8
	count        uint64
	keyType      string
	counterType  string
}

func (m *metadataEntry) Pack() ([]byte, error) {
	keyTypeBytes := []byte(m.keyType)
	counterTypeBytes := []byte(m.counterType)

	buf := make([]byte, 2+8+2+len(keyTypeBytes)+len(counterTypeBytes)+4)
	w := bytewriter.New(buf)

	if _, err := w.Write([]byte{m.keyWidth, m.counterWidth}); err != nil {
		return nil, err
	}
	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], m.count)
	if _, err := w.Write(countBuf[:]); err != nil {
		return nil, err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint16(lenBuf[0:2], uint16(len(keyTypeBytes)))
	binary.BigEndian.PutUint16(lenBuf[2:4], uint16(len(counterTypeBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return nil, err
	}
	if _, err := w.Write(keyTypeBytes); err != nil {
		return nil, err
	}
	if _, err := w.Write(counterTypeBytes); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *metadataEntry) Unpack(data []byte) error {
	if len(data) < 14 {
		return ErrHeader
	}
	m.keyWidth = data[0]
	m.counterWidth = data[1]
	m.count = binary.BigEndian.Uint64(data[2:10])
	keyLen := binary.BigEndian.Uint16(data[10:12])
	counterLen := binary.BigEndian.Uint16(data[12:14])
	rest := data[14:]
	if len(rest) < int(keyLen)+int(counterLen) {
		return ErrHeader
	}
	m.keyType = string(rest[:keyLen])
	m.counterType = string(rest[keyLen : keyLen+counterLen])
	return nil
}

// Write serializes b to st: a header carrying the bag-metadata entry,
// followed by one fixed-width (key || counter) record per nonzero entry, in
// the Bag's natural iteration order.
func Write(b *Bag, st *stream.Stream) error {
	h := st.Header()
	h.Format = stream.FormatBag
	h.RecordVersion = 4

	count := uint64(b.CountKeys())
	meta := &metadataEntry{
		keyWidth:     uint8(b.keyWidth),
		counterWidth: uint8(b.counterWidth),
		count:        count,
		keyType:      b.keyType,
		counterType:  b.counterType,
	}
	if err := h.SetEntry(metadataEntryID, meta); err != nil {
		return ErrHeader.Wrap(err)
	}
	if err := st.WriteHeader(); err != nil {
		return ErrOutput.Wrap(err)
	}

	rec := make([]byte, b.keyWidth+8)
	var writeErr error
	b.each(func(key []byte, value uint64) bool {
		copy(rec, key)
		binary.BigEndian.PutUint64(rec[b.keyWidth:], value)
		if _, err := st.Write(rec); err != nil {
			writeErr = ErrOutput.Wrap(err)
			return false
		}
		return true
	})
	return writeErr
}

// Read deserializes a Bag previously produced by Write from st.
func Read(st *stream.Stream) (*Bag, error) {
	h, err := st.ReadHeader()
	if err != nil {
		return nil, ErrRead.Wrap(err)
	}
	if h.Format != stream.FormatBag {
		return nil, ErrHeader
	}

	entries, err := h.DecodedEntries()
	if err != nil {
		return nil, ErrHeader.Wrap(err)
	}
	meta, ok := entries[metadataEntryID].(*metadataEntry)
	if !ok {
		return nil, ErrHeader
	}

	b, err := Create(meta.keyType, meta.counterType, int(meta.keyWidth), int(meta.counterWidth))
	if err != nil {
		return nil, err
	}

	recLen := int(meta.keyWidth) + 8
	rec := make([]byte, recLen)
	for i := uint64(0); i < meta.count; i++ {
		if err := readRecord(st, rec); err != nil {
			return nil, err
		}
		value := binary.BigEndian.Uint64(rec[meta.keyWidth:])
		if err := b.Set(append([]byte(nil), rec[:meta.keyWidth]...), value); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func readRecord(st *stream.Stream, rec []byte) error {
	n, err := st.Read(rec)
	if err != nil {
		return ErrRead.Wrap(err)
	}
	if n != len(rec) {
		return ErrRead
	}
	return nil
}

// ProcessStream reads every (key, value) record from st and invokes
// entryCB for each, after initCB has received the decoded metadata -- used
// for scanning large on-disk Bags without materializing the whole mapping.
func ProcessStream(st *stream.Stream, initCB func(keyWidth, counterWidth int) error, entryCB func(key []byte, value uint64) error) error {
	h, err := st.ReadHeader()
	if err != nil {
		return ErrRead.Wrap(err)
	}
	if h.Format != stream.FormatBag {
		return ErrHeader
	}
	entries, err := h.DecodedEntries()
	if err != nil {
		return ErrHeader.Wrap(err)
	}
	meta, ok := entries[metadataEntryID].(*metadataEntry)
	if !ok {
		return ErrHeader
	}
	if initCB != nil {
		if err := initCB(int(meta.keyWidth), int(meta.counterWidth)); err != nil {
			return err
		}
	}

	recLen := int(meta.keyWidth) + 8
	rec := make([]byte, recLen)
	for i := uint64(0); i < meta.count; i++ {
		if err := readRecord(st, rec); err != nil {
			return err
		}
		value := binary.BigEndian.Uint64(rec[meta.keyWidth:])
		if err := entryCB(rec[:meta.keyWidth], value); err != nil {
			return err
		}
	}
	return nil
}
