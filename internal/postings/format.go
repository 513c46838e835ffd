package postings

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/hash"
	"github.com/hupe1980/sparsego/model"
)

const (
	MagicNumber = 0x31585053 // "SPX1"
	Version     = 1

	// HeaderSize is the size of the fixed file header preceding the term table.
	HeaderSize = 72

	termEntrySize = 4 + 4 + 4 + 4 + 4
	pageEntrySize = 8 + 8 + 4 + 4 + 4
)

// FileHeader is the fixed-size prefix of a persisted index header.
//
//	[0:4]   magic "SPX1"
//	[4:6]   version
//	[6]     term table codec
//	[7]     reserved
//	[8:12]  page size
//	[12:16] term count
//	[16:20] document count
//	[20:24] reserved
//	[24:32] posting count
//	[32:40] doc-id stream length
//	[40:48] value stream length
//	[48:52] raw term table length
//	[52:56] stored term table length
//	[56:60] CRC32C of stored term table
//	[60:64] CRC32C of doc-id stream
//	[64:68] CRC32C of value stream
//	[68:72] CRC32C of bytes [0:68]
type FileHeader struct {
	Magic          uint32
	Version        uint16
	Codec          compress.Type
	PageSize       uint32
	NumTerms       uint32
	NumDocs        uint32
	NumPostings    uint64
	DocIDsLen      uint64
	ValuesLen      uint64
	TableRawLen    uint32
	TableStoredLen uint32
	TableCRC       uint32
	DocIDsCRC      uint32
	ValuesCRC      uint32
}

// Encode serializes the header including its own checksum.
func (h *FileHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Codec)
	binary.LittleEndian.PutUint32(buf[8:], h.PageSize)
	binary.LittleEndian.PutUint32(buf[12:], h.NumTerms)
	binary.LittleEndian.PutUint32(buf[16:], h.NumDocs)
	binary.LittleEndian.PutUint64(buf[24:], h.NumPostings)
	binary.LittleEndian.PutUint64(buf[32:], h.DocIDsLen)
	binary.LittleEndian.PutUint64(buf[40:], h.ValuesLen)
	binary.LittleEndian.PutUint32(buf[48:], h.TableRawLen)
	binary.LittleEndian.PutUint32(buf[52:], h.TableStoredLen)
	binary.LittleEndian.PutUint32(buf[56:], h.TableCRC)
	binary.LittleEndian.PutUint32(buf[60:], h.DocIDsCRC)
	binary.LittleEndian.PutUint32(buf[64:], h.ValuesCRC)
	binary.LittleEndian.PutUint32(buf[68:], hash.CRC32C(buf[:68]))
	return buf
}

// DecodeFileHeader parses and verifies the fixed header.
func DecodeFileHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrCorruptHeader, len(buf), HeaderSize)
	}
	if got, want := hash.CRC32C(buf[:68]), binary.LittleEndian.Uint32(buf[68:]); got != want {
		return nil, fmt.Errorf("%w: header checksum mismatch", ErrCorruptHeader)
	}
	h := &FileHeader{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: invalid magic %#x", ErrCorruptHeader, h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptHeader, h.Version)
	}
	h.Codec = compress.Type(buf[6])
	if !h.Codec.Valid() {
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorruptHeader, buf[6])
	}
	h.PageSize = binary.LittleEndian.Uint32(buf[8:])
	h.NumTerms = binary.LittleEndian.Uint32(buf[12:])
	h.NumDocs = binary.LittleEndian.Uint32(buf[16:])
	h.NumPostings = binary.LittleEndian.Uint64(buf[24:])
	h.DocIDsLen = binary.LittleEndian.Uint64(buf[32:])
	h.ValuesLen = binary.LittleEndian.Uint64(buf[40:])
	h.TableRawLen = binary.LittleEndian.Uint32(buf[48:])
	h.TableStoredLen = binary.LittleEndian.Uint32(buf[52:])
	h.TableCRC = binary.LittleEndian.Uint32(buf[56:])
	h.DocIDsCRC = binary.LittleEndian.Uint32(buf[60:])
	h.ValuesCRC = binary.LittleEndian.Uint32(buf[64:])
	return h, nil
}

// EncodeHeader serializes info into a complete header blob: the fixed
// header followed by the term table, compressed with codec when that helps.
func EncodeHeader(info *IndexInfo, codec compress.Type) ([]byte, error) {
	terms := info.SortedTerms()

	size := len(terms) * termEntrySize
	for _, t := range info.Terms {
		size += len(t.Pages) * pageEntrySize
	}
	raw := make([]byte, size)
	off := 0
	for _, term := range terms {
		t := info.Terms[term]
		binary.LittleEndian.PutUint32(raw[off:], uint32(t.Term))
		binary.LittleEndian.PutUint32(raw[off+4:], t.Length)
		binary.LittleEndian.PutUint32(raw[off+8:], math.Float32bits(float32(t.MaxValue)))
		binary.LittleEndian.PutUint32(raw[off+12:], uint32(t.MaxDocID))
		binary.LittleEndian.PutUint32(raw[off+16:], uint32(len(t.Pages)))
		off += termEntrySize
		for _, p := range t.Pages {
			binary.LittleEndian.PutUint64(raw[off:], p.DocIDOffset)
			binary.LittleEndian.PutUint64(raw[off+8:], p.ValueOffset)
			binary.LittleEndian.PutUint32(raw[off+16:], p.Count)
			binary.LittleEndian.PutUint32(raw[off+20:], math.Float32bits(float32(p.MaxValue)))
			binary.LittleEndian.PutUint32(raw[off+24:], uint32(p.MaxDocID))
			off += pageEntrySize
		}
	}
	if uint64(len(raw)) > math.MaxUint32 {
		return nil, fmt.Errorf("term table of %d bytes exceeds format limit", len(raw))
	}

	stored, applied, err := compress.Encode(raw, codec)
	if err != nil {
		return nil, err
	}

	h := FileHeader{
		Magic:          MagicNumber,
		Version:        Version,
		Codec:          applied,
		PageSize:       info.PageSize,
		NumTerms:       uint32(len(terms)),
		NumDocs:        info.NumDocs,
		NumPostings:    info.NumPostings,
		DocIDsLen:      info.DocIDsLen,
		ValuesLen:      info.ValuesLen,
		TableRawLen:    uint32(len(raw)),
		TableStoredLen: uint32(len(stored)),
		TableCRC:       hash.CRC32C(stored),
		DocIDsCRC:      info.DocIDsCRC,
		ValuesCRC:      info.ValuesCRC,
	}

	out := make([]byte, 0, HeaderSize+len(stored))
	out = append(out, h.Encode()...)
	return append(out, stored...), nil
}

// DecodeHeader parses a complete header blob and validates every page
// invariant. Any structural problem is reported as ErrCorruptHeader.
func DecodeHeader(buf []byte) (*IndexInfo, error) {
	h, err := DecodeFileHeader(buf)
	if err != nil {
		return nil, err
	}
	body := buf[HeaderSize:]
	if uint64(len(body)) != uint64(h.TableStoredLen) {
		return nil, fmt.Errorf("%w: term table is %d bytes, header says %d", ErrCorruptHeader, len(body), h.TableStoredLen)
	}
	if hash.CRC32C(body) != h.TableCRC {
		return nil, fmt.Errorf("%w: term table checksum mismatch", ErrCorruptHeader)
	}
	// Smallest possible table: one term entry plus one page per term.
	if uint64(h.TableRawLen) < uint64(h.NumTerms)*(termEntrySize+pageEntrySize) {
		return nil, fmt.Errorf("%w: term table too small for %d terms", ErrCorruptHeader, h.NumTerms)
	}
	raw, err := compress.Decode(body, h.Codec, int(h.TableRawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptHeader, err)
	}

	info := &IndexInfo{
		PageSize:    h.PageSize,
		NumDocs:     h.NumDocs,
		NumPostings: h.NumPostings,
		DocIDsLen:   h.DocIDsLen,
		ValuesLen:   h.ValuesLen,
		DocIDsCRC:   h.DocIDsCRC,
		ValuesCRC:   h.ValuesCRC,
		Terms:       make(map[model.TermIndex]*TermInfo, h.NumTerms),
	}

	off := 0
	var prev model.TermIndex
	for i := uint32(0); i < h.NumTerms; i++ {
		if len(raw)-off < termEntrySize {
			return nil, fmt.Errorf("%w: truncated term entry %d", ErrCorruptHeader, i)
		}
		t := &TermInfo{
			Term:     model.TermIndex(binary.LittleEndian.Uint32(raw[off:])),
			Length:   binary.LittleEndian.Uint32(raw[off+4:]),
			MaxValue: model.ImpactValue(math.Float32frombits(binary.LittleEndian.Uint32(raw[off+8:]))),
			MaxDocID: model.DocID(binary.LittleEndian.Uint32(raw[off+12:])),
		}
		pageCount := int(binary.LittleEndian.Uint32(raw[off+16:]))
		off += termEntrySize

		if i > 0 && t.Term <= prev {
			return nil, fmt.Errorf("%w: term %d out of order", ErrCorruptHeader, t.Term)
		}
		prev = t.Term

		if pageCount > (len(raw)-off)/pageEntrySize {
			return nil, fmt.Errorf("%w: term %d: truncated page table", ErrCorruptHeader, t.Term)
		}
		t.Pages = make([]PageInfo, pageCount)
		for j := range t.Pages {
			t.Pages[j] = PageInfo{
				DocIDOffset: binary.LittleEndian.Uint64(raw[off:]),
				ValueOffset: binary.LittleEndian.Uint64(raw[off+8:]),
				Count:       binary.LittleEndian.Uint32(raw[off+16:]),
				MaxValue:    model.ImpactValue(math.Float32frombits(binary.LittleEndian.Uint32(raw[off+20:]))),
				MaxDocID:    model.DocID(binary.LittleEndian.Uint32(raw[off+24:])),
			}
			off += pageEntrySize
		}
		info.Terms[t.Term] = t
	}
	if off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes in term table", ErrCorruptHeader, len(raw)-off)
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}
