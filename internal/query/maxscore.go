package query

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/model"
)

// maxScore splits terms by upper bound. Terms whose summed bounds cannot
// beat the threshold on their own are non-essential: they only ever get
// probed for candidates produced by the essential terms.
type maxScore struct{}

func (maxScore) Algorithm() Algorithm { return MaxScore }

func (maxScore) Search(byTerm []*Scorer, top *TopK, filter *roaring.Bitmap) {
	n := len(byTerm)
	byBound := slices.Clone(byTerm)
	slices.SortStableFunc(byBound, func(a, b *Scorer) int { return cmp.Compare(a.upper, b.upper) })

	// prefix[i] is the summed bound of byBound[:i].
	prefix := make([]float64, n+1)
	for i, s := range byBound {
		prefix[i+1] = prefix[i] + s.upper
	}

	// byBound[:essential] is the non-essential set.
	essential := 0
	partition := func() {
		theta := top.Threshold()
		for essential < n && prefix[essential+1] <= theta {
			essential++
		}
	}
	partition()

	for essential < n {
		doc := uint64(Exhausted)
		for _, s := range byBound[essential:] {
			doc = min(doc, s.doc)
		}
		if doc == Exhausted {
			return
		}

		if allowed(filter, model.DocID(doc)) {
			theta := top.Threshold()
			var partial float64
			for _, s := range byBound[essential:] {
				if s.doc == doc {
					partial += s.impact
				}
			}

			pruned := false
			for i := essential - 1; i >= 0; i-- {
				if partial+prefix[i+1] <= theta {
					pruned = true
					break
				}
				s := byBound[i]
				s.AdvanceTo(doc)
				if s.doc == doc {
					partial += s.impact
				}
			}

			if !pruned && top.Offer(model.DocID(doc), score(byTerm, doc)) {
				partition()
			}
		}

		for _, s := range byBound[essential:] {
			if s.doc == doc {
				s.Next()
			}
		}
	}
}
