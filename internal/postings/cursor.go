package postings

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/sparsego/model"
)

// Cursor is a forward-only iterator over one term's posting list.
//
// A fresh cursor is unpositioned: Current fails until Next or AdvanceTo has
// been called. Exhaustion is not an error; I/O and corruption failures are
// sticky and reported by Err, after which the cursor behaves as exhausted.
type Cursor interface {
	// AdvanceTo positions the cursor on the first record with doc id >= target
	// and reports whether such a record exists. Targets at or behind the
	// current position leave the cursor where it is.
	AdvanceTo(target model.DocID) bool
	// Next steps to the following record (the first one if unpositioned).
	Next() (model.TermImpact, bool)
	// Current returns the record under the cursor.
	Current() (model.TermImpact, error)
	// MaxValue is an upper bound of every record not yet consumed.
	MaxValue() model.ImpactValue
	// MaxDocID is the last doc id of the whole posting list.
	MaxDocID() model.DocID
	// RemainingLength counts the records not yet consumed, including the
	// current one.
	RemainingLength() int
	// PageBound returns the bound and last doc id of the page that would
	// hold target, without decoding it. ok is false when target lies past
	// the end of the list.
	PageBound(target model.DocID) (maxValue model.ImpactValue, maxDocID model.DocID, ok bool)
	// Err returns the first I/O or corruption error encountered.
	Err() error
	// Close releases the cursor's hold on the index. It is idempotent.
	Close() error
}

// NewCursor returns a cursor over t reading from s. release, if non-nil, is
// called exactly once when the cursor is closed.
func NewCursor(t *TermInfo, s Streams, release func()) Cursor {
	if t == nil || len(t.Pages) == 0 {
		return &emptyCursor{release: onceFunc(release)}
	}
	return &pageCursor{
		term:    t,
		src:     s,
		page:    -1,
		release: onceFunc(release),
	}
}

// EmptyCursor returns a cursor over an empty posting list.
func EmptyCursor(release func()) Cursor {
	return &emptyCursor{release: onceFunc(release)}
}

func onceFunc(f func()) func() {
	if f == nil {
		return func() {}
	}
	return sync.OnceFunc(f)
}

type pageCursor struct {
	term *TermInfo
	src  Streams

	page      int // -1 before the first record
	pos       int
	exhausted bool
	err       error

	docs        []model.DocID
	vals        []model.ImpactValue
	valsDecoded bool
	docBuf      []byte
	valBuf      []byte
	release     func()
}

func (c *pageCursor) positioned() bool {
	return c.page >= 0 && !c.exhausted
}

func (c *pageCursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
	c.exhausted = true
	c.docs = c.docs[:0]
}

// load decodes the doc ids of page i. Values are decoded on first access.
func (c *pageCursor) load(i int) bool {
	p := c.term.Pages[i]
	n := int(p.Count) * RecordSize
	if cap(c.docBuf) < n {
		c.docBuf = make([]byte, n)
	}
	raw, err := c.src.DocIDs.View(p.DocIDOffset, n, c.docBuf)
	if err != nil {
		c.fail(fmt.Errorf("term %d page %d: %w", c.term.Term, i, err))
		return false
	}

	c.docs = c.docs[:0]
	var prev model.DocID
	if i > 0 {
		prev = c.term.Pages[i-1].MaxDocID
	}
	for j := 0; j < int(p.Count); j++ {
		d := model.DocID(binary.LittleEndian.Uint32(raw[j*RecordSize:]))
		if (i > 0 || j > 0) && d <= prev {
			c.fail(fmt.Errorf("%w: term %d page %d: doc ids not increasing", ErrCorruptPage, c.term.Term, i))
			return false
		}
		c.docs = append(c.docs, d)
		prev = d
	}
	if prev != p.MaxDocID {
		c.fail(fmt.Errorf("%w: term %d page %d: last doc id %d, header says %d", ErrCorruptPage, c.term.Term, i, prev, p.MaxDocID))
		return false
	}

	c.page = i
	c.pos = 0
	c.valsDecoded = false
	return true
}

func (c *pageCursor) decodeValues() error {
	if c.valsDecoded {
		return nil
	}
	p := c.term.Pages[c.page]
	n := int(p.Count) * RecordSize
	if cap(c.valBuf) < n {
		c.valBuf = make([]byte, n)
	}
	raw, err := c.src.Values.View(p.ValueOffset, n, c.valBuf)
	if err != nil {
		c.fail(fmt.Errorf("term %d page %d: %w", c.term.Term, c.page, err))
		return c.err
	}
	c.vals = c.vals[:0]
	for j := 0; j < int(p.Count); j++ {
		v := model.ImpactValue(math.Float32frombits(binary.LittleEndian.Uint32(raw[j*RecordSize:])))
		if !v.Valid() || v > p.MaxValue {
			c.fail(fmt.Errorf("%w: term %d page %d: value %v exceeds bound %v", ErrCorruptPage, c.term.Term, c.page, v, p.MaxValue))
			return c.err
		}
		c.vals = append(c.vals, v)
	}
	c.valsDecoded = true
	return nil
}

func (c *pageCursor) record() (model.TermImpact, bool) {
	if err := c.decodeValues(); err != nil {
		return model.TermImpact{}, false
	}
	return model.TermImpact{DocID: c.docs[c.pos], Value: c.vals[c.pos]}, true
}

func (c *pageCursor) Next() (model.TermImpact, bool) {
	if c.exhausted {
		return model.TermImpact{}, false
	}
	if c.page < 0 || c.pos+1 >= len(c.docs) {
		next := c.page + 1
		if next >= len(c.term.Pages) {
			c.exhausted = true
			return model.TermImpact{}, false
		}
		if !c.load(next) {
			return model.TermImpact{}, false
		}
	} else {
		c.pos++
	}
	return c.record()
}

func (c *pageCursor) AdvanceTo(target model.DocID) bool {
	if c.exhausted {
		return false
	}
	if c.page >= 0 {
		if c.docs[c.pos] >= target {
			return true
		}
		if target <= c.term.Pages[c.page].MaxDocID {
			rest := c.docs[c.pos:]
			c.pos += sort.Search(len(rest), func(i int) bool { return rest[i] >= target })
			return true
		}
	}

	from := c.page + 1
	pages := c.term.Pages[from:]
	i := from + sort.Search(len(pages), func(i int) bool { return pages[i].MaxDocID >= target })
	if i >= len(c.term.Pages) {
		c.exhausted = true
		return false
	}
	if !c.load(i) {
		return false
	}
	c.pos = sort.Search(len(c.docs), func(j int) bool { return c.docs[j] >= target })
	return true
}

func (c *pageCursor) Current() (model.TermImpact, error) {
	if c.err != nil {
		return model.TermImpact{}, c.err
	}
	if !c.positioned() {
		return model.TermImpact{}, ErrCursorNotPositioned
	}
	rec, ok := c.record()
	if !ok {
		return model.TermImpact{}, c.err
	}
	return rec, nil
}

func (c *pageCursor) MaxValue() model.ImpactValue {
	if c.exhausted {
		return 0
	}
	return c.term.SuffixMax(max(c.page, 0))
}

func (c *pageCursor) MaxDocID() model.DocID {
	return c.term.MaxDocID
}

func (c *pageCursor) RemainingLength() int {
	if c.exhausted {
		return 0
	}
	if c.page < 0 {
		return int(c.term.Length)
	}
	return int(c.term.Length - c.term.PageStart(c.page) - uint32(c.pos))
}

func (c *pageCursor) PageBound(target model.DocID) (model.ImpactValue, model.DocID, bool) {
	if c.exhausted {
		return 0, 0, false
	}
	from := max(c.page, 0)
	pages := c.term.Pages[from:]
	i := sort.Search(len(pages), func(i int) bool { return pages[i].MaxDocID >= target })
	if i >= len(pages) {
		return 0, 0, false
	}
	return pages[i].MaxValue, pages[i].MaxDocID, true
}

func (c *pageCursor) Err() error {
	return c.err
}

func (c *pageCursor) Close() error {
	c.exhausted = true
	c.release()
	return nil
}

type emptyCursor struct {
	release func()
}

func (*emptyCursor) AdvanceTo(model.DocID) bool { return false }

func (*emptyCursor) Next() (model.TermImpact, bool) { return model.TermImpact{}, false }

func (*emptyCursor) Current() (model.TermImpact, error) {
	return model.TermImpact{}, ErrCursorNotPositioned
}

func (*emptyCursor) MaxValue() model.ImpactValue { return 0 }

func (*emptyCursor) MaxDocID() model.DocID { return 0 }

func (*emptyCursor) RemainingLength() int { return 0 }

func (*emptyCursor) PageBound(model.DocID) (model.ImpactValue, model.DocID, bool) {
	return 0, 0, false
}

func (*emptyCursor) Err() error { return nil }

func (c *emptyCursor) Close() error {
	c.release()
	return nil
}
