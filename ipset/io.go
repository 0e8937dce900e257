package ipset

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/movsoftware/libsilk/stream"
)

// metadataEntryID is the header-entry identifier carrying an IPSet's family
// and block count, registered against the shared stream codec the same way
// bag registers its own metadata entry.
const metadataEntryID = 5

func init() {
	stream.RegisterEntryType(metadataEntryID, func() stream.EntryCodec { return &metadataEntry{} })
}

type metadataEntry struct {
	family Family
	count  uint64
}

func (m *metadataEntry) Pack() ([]byte, error) {
	buf := make([]byte, 9)
	bw := bytewriter.New(buf)
	family := byte(0)
	if m.family == FamilyV6 {
		family = 1
	}
	if _, err := bw.Write([]byte{family}); err != nil {
		return nil, err
	}
	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], m.count)
	if _, err := bw.Write(countBuf[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *metadataEntry) Unpack(data []byte) error {
	if len(data) != 9 {
		return ErrCorrupt
	}
	if data[0] == 1 {
		m.family = FamilyV6
	} else {
		m.family = FamilyV4
	}
	m.count = binary.BigEndian.Uint64(data[1:])
	return nil
}

// Write serializes s (which must be clean) to st: a header carrying the
// family/count metadata entry, followed by one fixed-width record per block
// (address bytes, then a one-byte prefix length).
func Write(s *IPSet, st *stream.Stream) error {
	if s.dirty || s.arr == nil {
		return ErrRequireClean
	}

	h := st.Header()
	h.Format = stream.FormatIPSet
	h.RecordVersion = 3
	if err := h.SetEntry(metadataEntryID, &metadataEntry{family: s.family, count: s.count}); err != nil {
		return ErrFileHeader.Wrap(err)
	}
	if err := st.WriteHeader(); err != nil {
		return ErrFileIO.Wrap(err)
	}

	addrLen := s.family.addrLen()
	rec := make([]byte, addrLen+1)
	for _, b := range s.arr.blocks {
		copy(rec, b.addr)
		rec[addrLen] = byte(b.prefix)
		if _, err := st.Write(rec); err != nil {
			return ErrFileIO.Wrap(err)
		}
	}
	return nil
}

// Read deserializes an IPSet previously produced by Write from st.
func Read(st *stream.Stream) (*IPSet, error) {
	h, err := st.ReadHeader()
	if err != nil {
		return nil, ErrFileIO.Wrap(err)
	}
	if h.Format != stream.FormatIPSet {
		return nil, ErrFileType
	}

	entries, err := h.DecodedEntries()
	if err != nil {
		return nil, ErrFileHeader.Wrap(err)
	}
	meta, ok := entries[metadataEntryID].(*metadataEntry)
	if !ok {
		return nil, ErrFileHeader
	}

	s := Create(meta.family)
	addrLen := s.family.addrLen()
	rec := make([]byte, addrLen+1)

	for i := uint64(0); i < meta.count; i++ {
		if err := readRecord(st, rec); err != nil {
			return nil, err
		}
		s.t.insert(append([]byte(nil), rec[:addrLen]...), int(rec[addrLen]))
	}
	s.dirty = true
	if err := s.Clean(); err != nil {
		return nil, err
	}
	return s, nil
}

func readRecord(st *stream.Stream, rec []byte) error {
	n, err := st.Read(rec)
	if err != nil {
		return ErrFileIO.Wrap(err)
	}
	if n != len(rec) {
		return ErrCorrupt
	}
	return nil
}

// ProcessStream reads every block from st and invokes fn for each, without
// materializing the whole set -- used for large on-disk sets where only a
// scan is needed.
func ProcessStream(st *stream.Stream, fn func(addr []byte, prefix int) error) error {
	h, err := st.ReadHeader()
	if err != nil {
		return ErrFileIO.Wrap(err)
	}
	if h.Format != stream.FormatIPSet {
		return ErrFileType
	}
	entries, err := h.DecodedEntries()
	if err != nil {
		return ErrFileHeader.Wrap(err)
	}
	meta, ok := entries[metadataEntryID].(*metadataEntry)
	if !ok {
		return ErrFileHeader
	}

	addrLen := meta.family.addrLen()
	rec := make([]byte, addrLen+1)
	for i := uint64(0); i < meta.count; i++ {
		if err := readRecord(st, rec); err != nil {
			return err
		}
		if err := fn(rec[:addrLen], int(rec[addrLen])); err != nil {
			return err
		}
	}
	return nil
}
