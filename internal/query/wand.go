package query

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/model"
)

// wand is block-max WAND. Cursors are kept sorted by current doc id; the
// pivot is the first cursor at which the summed upper bounds beat the
// threshold. Page bounds then decide whether the pivot region is worth
// decoding at all.
type wand struct{}

func (wand) Algorithm() Algorithm { return Wand }

func (wand) Search(byTerm []*Scorer, top *TopK, filter *roaring.Bitmap) {
	byDoc := slices.Clone(byTerm)
	sortByDoc := func() {
		slices.SortStableFunc(byDoc, func(a, b *Scorer) int { return cmp.Compare(a.doc, b.doc) })
	}
	sortByDoc()

	for {
		theta := top.Threshold()

		pivot := -1
		var acc float64
		for i, s := range byDoc {
			if s.doc == Exhausted {
				break
			}
			acc += s.Remaining()
			if acc > theta {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			return
		}
		p := byDoc[pivot].doc
		for pivot+1 < len(byDoc) && byDoc[pivot+1].doc == p {
			pivot++
		}

		var blockSum float64
		blockEnd := uint64(Exhausted)
		for _, s := range byDoc[:pivot+1] {
			if v, last, ok := s.PageBound(p); ok {
				blockSum += v
				blockEnd = min(blockEnd, last)
			}
		}

		if blockSum <= theta {
			// No document in [p, next) can beat the threshold.
			next := uint64(Exhausted)
			if blockEnd < Exhausted {
				next = blockEnd + 1
			}
			if pivot+1 < len(byDoc) {
				next = min(next, byDoc[pivot+1].doc)
			}
			for _, s := range byDoc[:pivot+1] {
				s.AdvanceTo(next)
			}
			sortByDoc()
			continue
		}

		if byDoc[0].doc == p {
			if allowed(filter, model.DocID(p)) {
				top.Offer(model.DocID(p), score(byTerm, p))
			}
			for _, s := range byDoc[:pivot+1] {
				s.Next()
			}
		} else {
			byDoc[0].AdvanceTo(p)
		}
		sortByDoc()
	}
}
