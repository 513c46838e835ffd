package query

import (
	"math"

	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/model"
)

// Exhausted is the doc position of a scorer past the end of its list.
const Exhausted = math.MaxUint64

// Scorer is a weighted cursor over one query term.
type Scorer struct {
	Term   model.TermIndex
	Weight float64

	c      postings.Cursor
	doc    uint64
	impact float64
	upper  float64
}

func newScorer(t Term, c postings.Cursor) *Scorer {
	s := &Scorer{Term: t.Index, Weight: t.Weight, c: c}
	s.upper = t.Weight * float64(c.MaxValue())
	if rec, ok := c.Next(); ok {
		s.set(rec)
	} else {
		s.exhaust()
	}
	return s
}

// Doc returns the current doc id, or Exhausted.
func (s *Scorer) Doc() uint64 { return s.doc }

// Impact returns weight × value of the current record.
func (s *Scorer) Impact() float64 { return s.impact }

// Upper is weight × the term's largest impact. It never changes.
func (s *Scorer) Upper() float64 { return s.upper }

// Remaining returns weight × the bound of every record not yet consumed.
func (s *Scorer) Remaining() float64 {
	if s.doc == Exhausted {
		return 0
	}
	return s.Weight * float64(s.c.MaxValue())
}

func (s *Scorer) set(rec model.TermImpact) {
	s.doc = uint64(rec.DocID)
	s.impact = s.Weight * float64(rec.Value)
}

func (s *Scorer) exhaust() {
	s.doc = Exhausted
	s.impact = 0
}

// Next steps past the current record.
func (s *Scorer) Next() {
	if s.doc == Exhausted {
		return
	}
	if rec, ok := s.c.Next(); ok {
		s.set(rec)
		return
	}
	s.exhaust()
}

// AdvanceTo moves to the first record with doc id >= target.
func (s *Scorer) AdvanceTo(target uint64) {
	if s.doc >= target {
		return
	}
	if target > math.MaxUint32 || !s.c.AdvanceTo(model.DocID(target)) {
		s.exhaust()
		return
	}
	rec, err := s.c.Current()
	if err != nil {
		s.exhaust()
		return
	}
	s.set(rec)
}

// PageBound returns weight × the bound of the page holding target and that
// page's last doc id, without decoding the page.
func (s *Scorer) PageBound(target uint64) (float64, uint64, bool) {
	if s.doc == Exhausted || target > math.MaxUint32 {
		return 0, 0, false
	}
	v, last, ok := s.c.PageBound(model.DocID(target))
	if !ok {
		return 0, 0, false
	}
	return s.Weight * float64(v), uint64(last), true
}

// score sums the contributions at doc in term order. scorers must be sorted
// by term so every strategy adds the same terms in the same order.
func score(byTerm []*Scorer, doc uint64) float64 {
	var sum float64
	for _, s := range byTerm {
		if s.doc == doc {
			sum += s.impact
		}
	}
	return sum
}
