package postings

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"math"

	sphash "github.com/hupe1980/sparsego/internal/hash"
	"github.com/hupe1980/sparsego/model"
)

// Writer lays posting lists out as pages in two flat streams: little-endian
// uint32 doc ids and little-endian float32 impact values. Terms must be
// written in ascending order.
type Writer struct {
	docs, vals       *bufio.Writer
	docsCRC, valsCRC hash.Hash32
	pageSize         int

	offset   uint64
	lastTerm model.TermIndex
	started  bool
	info     *IndexInfo
	buf      [RecordSize]byte
}

// NewWriter creates a writer that emits doc ids to docs and values to vals.
func NewWriter(docs, vals io.Writer, pageSize int) (*Writer, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	w := &Writer{
		docsCRC:  sphash.NewCRC32C(),
		valsCRC:  sphash.NewCRC32C(),
		pageSize: pageSize,
		info: &IndexInfo{
			PageSize: uint32(pageSize),
			Terms:    make(map[model.TermIndex]*TermInfo),
		},
	}
	w.docs = bufio.NewWriter(io.MultiWriter(docs, w.docsCRC))
	w.vals = bufio.NewWriter(io.MultiWriter(vals, w.valsCRC))
	return w, nil
}

// WriteTerm appends the posting list of term. Postings must be sorted by
// strictly increasing doc id and carry valid values. Empty lists are skipped.
func (w *Writer) WriteTerm(term model.TermIndex, list []model.TermImpact) error {
	if len(list) == 0 {
		return nil
	}
	if w.started && term <= w.lastTerm {
		return fmt.Errorf("%w: %d after %d", ErrTermOrder, term, w.lastTerm)
	}
	if uint64(len(list)) > math.MaxUint32 {
		return fmt.Errorf("term %d: %d postings exceed format limit", term, len(list))
	}

	ti := &TermInfo{
		Term:   term,
		Length: uint32(len(list)),
		Pages:  make([]PageInfo, 0, (len(list)+w.pageSize-1)/w.pageSize),
	}

	for start := 0; start < len(list); start += w.pageSize {
		page := list[start:min(start+w.pageSize, len(list))]
		p := PageInfo{
			DocIDOffset: w.offset,
			ValueOffset: w.offset,
			Count:       uint32(len(page)),
		}
		for i, rec := range page {
			if (start > 0 || i > 0) && rec.DocID <= list[start+i-1].DocID {
				return fmt.Errorf("%w: term %d doc %d", ErrUnsortedPostings, term, rec.DocID)
			}
			if !rec.Value.Valid() {
				return fmt.Errorf("term %d doc %d: invalid value %v", term, rec.DocID, rec.Value)
			}
			p.MaxValue = max(p.MaxValue, rec.Value)
		}
		p.MaxDocID = page[len(page)-1].DocID

		for _, rec := range page {
			binary.LittleEndian.PutUint32(w.buf[:], uint32(rec.DocID))
			if _, err := w.docs.Write(w.buf[:]); err != nil {
				return err
			}
		}
		for _, rec := range page {
			binary.LittleEndian.PutUint32(w.buf[:], math.Float32bits(float32(rec.Value)))
			if _, err := w.vals.Write(w.buf[:]); err != nil {
				return err
			}
		}

		w.offset += uint64(len(page)) * RecordSize
		ti.MaxValue = max(ti.MaxValue, p.MaxValue)
		ti.Pages = append(ti.Pages, p)
	}
	ti.MaxDocID = list[len(list)-1].DocID

	w.info.Terms[term] = ti
	w.info.NumPostings += uint64(len(list))
	w.lastTerm = term
	w.started = true
	return nil
}

// Finish flushes both streams and returns the validated index metadata.
func (w *Writer) Finish(numDocs uint32) (*IndexInfo, error) {
	if err := w.docs.Flush(); err != nil {
		return nil, err
	}
	if err := w.vals.Flush(); err != nil {
		return nil, err
	}
	w.info.NumDocs = numDocs
	w.info.DocIDsLen = w.offset
	w.info.ValuesLen = w.offset
	w.info.DocIDsCRC = w.docsCRC.Sum32()
	w.info.ValuesCRC = w.valsCRC.Sum32()
	if err := w.info.Validate(); err != nil {
		return nil, err
	}
	return w.info, nil
}
