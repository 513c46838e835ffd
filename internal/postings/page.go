package postings

import (
	"fmt"
	"slices"

	"github.com/hupe1980/sparsego/model"
)

// RecordSize is the width in bytes of one doc id and of one impact value.
const RecordSize = 4

// DefaultPageSize is the number of records per page unless configured otherwise.
const DefaultPageSize = 128

// MaxPageSize bounds the configurable page size.
const MaxPageSize = 1 << 16

// PageInfo describes one physical block of a posting list.
//
// Doc ids strictly increase inside a page, MaxDocID equals the last doc id
// and MaxValue is an upper bound of every value in the page.
type PageInfo struct {
	DocIDOffset uint64 // byte offset into the doc-id stream
	ValueOffset uint64 // byte offset into the value stream
	Count       uint32
	MaxValue    model.ImpactValue
	MaxDocID    model.DocID
}

// TermInfo is the posting list metadata of one term.
type TermInfo struct {
	Term     model.TermIndex
	Pages    []PageInfo
	MaxValue model.ImpactValue
	MaxDocID model.DocID
	Length   uint32

	// starts[i] is the number of records stored before page i.
	starts []uint32
	// suffixMax[i] is the largest page bound of pages[i:].
	suffixMax []model.ImpactValue
}

// prepare computes the lookup tables cursors rely on.
func (t *TermInfo) prepare() {
	n := len(t.Pages)
	t.starts = make([]uint32, n)
	t.suffixMax = make([]model.ImpactValue, n)

	var acc uint32
	for i, p := range t.Pages {
		t.starts[i] = acc
		acc += p.Count
	}
	var m model.ImpactValue
	for i := n - 1; i >= 0; i-- {
		m = max(m, t.Pages[i].MaxValue)
		t.suffixMax[i] = m
	}
}

// SuffixMax returns the largest page bound of the pages from page onwards.
func (t *TermInfo) SuffixMax(page int) model.ImpactValue {
	if page < 0 || page >= len(t.suffixMax) {
		return 0
	}
	return t.suffixMax[page]
}

// PageStart returns the number of records preceding page.
func (t *TermInfo) PageStart(page int) uint32 {
	if page < 0 || page >= len(t.starts) {
		return t.Length
	}
	return t.starts[page]
}

// validate checks the structural invariants of the term against the
// stream lengths and page size of the enclosing index.
func (t *TermInfo) validate(pageSize uint32, docLen, valLen uint64) error {
	if len(t.Pages) == 0 {
		return fmt.Errorf("term %d: no pages", t.Term)
	}
	if !t.MaxValue.Valid() {
		return fmt.Errorf("term %d: invalid max value %v", t.Term, t.MaxValue)
	}

	var (
		total    uint64
		maxValue model.ImpactValue
	)
	for i, p := range t.Pages {
		if p.Count == 0 || p.Count > pageSize {
			return fmt.Errorf("term %d page %d: count %d outside [1, %d]", t.Term, i, p.Count, pageSize)
		}
		if !p.MaxValue.Valid() {
			return fmt.Errorf("term %d page %d: invalid max value %v", t.Term, i, p.MaxValue)
		}
		if p.DocIDOffset%RecordSize != 0 || p.ValueOffset%RecordSize != 0 {
			return fmt.Errorf("term %d page %d: misaligned offsets", t.Term, i)
		}
		size := uint64(p.Count) * RecordSize
		if p.DocIDOffset > docLen || size > docLen-p.DocIDOffset {
			return fmt.Errorf("term %d page %d: doc id range out of bounds", t.Term, i)
		}
		if p.ValueOffset > valLen || size > valLen-p.ValueOffset {
			return fmt.Errorf("term %d page %d: value range out of bounds", t.Term, i)
		}
		if i > 0 && p.MaxDocID <= t.Pages[i-1].MaxDocID {
			return fmt.Errorf("term %d page %d: doc id ranges overlap", t.Term, i)
		}
		// A page of n strictly increasing ids cannot end below n-1.
		if uint64(p.MaxDocID) < uint64(p.Count)-1 {
			return fmt.Errorf("term %d page %d: max doc id %d too small for %d records", t.Term, i, p.MaxDocID, p.Count)
		}
		total += uint64(p.Count)
		maxValue = max(maxValue, p.MaxValue)
	}

	if total != uint64(t.Length) {
		return fmt.Errorf("term %d: length %d does not match page counts %d", t.Term, t.Length, total)
	}
	if maxValue != t.MaxValue {
		return fmt.Errorf("term %d: max value %v does not match page maxima %v", t.Term, t.MaxValue, maxValue)
	}
	if last := t.Pages[len(t.Pages)-1].MaxDocID; last != t.MaxDocID {
		return fmt.Errorf("term %d: max doc id %d does not match last page %d", t.Term, t.MaxDocID, last)
	}
	return nil
}

// IndexInfo is the complete metadata of a built index. It is the decoded
// form of the persisted header and is immutable once constructed.
type IndexInfo struct {
	PageSize    uint32
	NumDocs     uint32
	NumPostings uint64
	DocIDsLen   uint64
	ValuesLen   uint64
	DocIDsCRC   uint32
	ValuesCRC   uint32
	Terms       map[model.TermIndex]*TermInfo
}

// Term returns the metadata of term, if present.
func (ii *IndexInfo) Term(term model.TermIndex) (*TermInfo, bool) {
	t, ok := ii.Terms[term]
	return t, ok
}

// NumTerms returns the number of terms with at least one posting.
func (ii *IndexInfo) NumTerms() int {
	return len(ii.Terms)
}

// NumPages returns the total number of pages across all terms.
func (ii *IndexInfo) NumPages() int {
	n := 0
	for _, t := range ii.Terms {
		n += len(t.Pages)
	}
	return n
}

// SortedTerms returns the term indexes in ascending order.
func (ii *IndexInfo) SortedTerms() []model.TermIndex {
	terms := make([]model.TermIndex, 0, len(ii.Terms))
	for t := range ii.Terms {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms
}

// Validate checks every structural invariant and prepares the cursor
// lookup tables. It must be called before cursors are created.
func (ii *IndexInfo) Validate() error {
	if ii.PageSize == 0 || ii.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size %d", ErrCorruptHeader, ii.PageSize)
	}
	if ii.DocIDsLen != ii.NumPostings*RecordSize || ii.ValuesLen != ii.NumPostings*RecordSize {
		return fmt.Errorf("%w: stream lengths do not match %d postings", ErrCorruptHeader, ii.NumPostings)
	}

	var total uint64
	for term, t := range ii.Terms {
		if t == nil || t.Term != term {
			return fmt.Errorf("%w: term %d: inconsistent entry", ErrCorruptHeader, term)
		}
		if err := t.validate(ii.PageSize, ii.DocIDsLen, ii.ValuesLen); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptHeader, err)
		}
		if uint64(t.Length) > uint64(ii.NumDocs) {
			return fmt.Errorf("%w: term %d: %d postings for %d documents", ErrCorruptHeader, term, t.Length, ii.NumDocs)
		}
		total += uint64(t.Length)
		t.prepare()
	}
	if total != ii.NumPostings {
		return fmt.Errorf("%w: posting count %d does not match terms %d", ErrCorruptHeader, ii.NumPostings, total)
	}
	return nil
}
