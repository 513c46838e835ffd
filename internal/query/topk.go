package query

import (
	"cmp"
	"math"
	"slices"

	"github.com/hupe1980/sparsego/model"
)

type candidate struct {
	doc   model.DocID
	score float64
}

// worse orders the heap: lower score first, then the larger doc id.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.doc > b.doc
}

// TopK collects the k best documents offered in ascending doc id order.
// It is a bounded min-heap whose root is the current worst entry.
type TopK struct {
	k     int
	items []candidate
}

// NewTopK creates a collector for k results.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make([]candidate, 0, min(k, 1024))}
}

// Threshold is the score a document must beat to be admitted. It is -Inf
// until the collector is full.
func (t *TopK) Threshold() float64 {
	if len(t.items) < t.k {
		return math.Inf(-1)
	}
	return t.items[0].score
}

// Offer admits doc if score is positive and beats the threshold. It
// reports whether the threshold may have changed.
func (t *TopK) Offer(doc model.DocID, score float64) bool {
	if score <= 0 || t.k <= 0 {
		return false
	}
	c := candidate{doc: doc, score: score}
	if len(t.items) < t.k {
		t.items = append(t.items, c)
		t.siftUp(len(t.items) - 1)
		return len(t.items) == t.k
	}
	if score <= t.items[0].score {
		return false
	}
	t.items[0] = c
	t.siftDown(0)
	return true
}

// Len returns the number of collected documents.
func (t *TopK) Len() int {
	return len(t.items)
}

// Results returns the collected documents by descending score, ties by
// ascending doc id.
func (t *TopK) Results() []model.ScoredDocument {
	out := make([]model.ScoredDocument, len(t.items))
	sorted := slices.Clone(t.items)
	slices.SortFunc(sorted, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.doc, b.doc)
	})
	for i, c := range sorted {
		out[i] = model.ScoredDocument{DocID: c.doc, Score: float32(c.score)}
	}
	return out
}

func (t *TopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(t.items[i], t.items[parent]) {
			break
		}
		t.items[i], t.items[parent] = t.items[parent], t.items[i]
		i = parent
	}
}

func (t *TopK) siftDown(i int) {
	n := len(t.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && worse(t.items[right], t.items[left]) {
			smallest = right
		}
		if !worse(t.items[smallest], t.items[i]) {
			break
		}
		t.items[i], t.items[smallest] = t.items[smallest], t.items[i]
		i = smallest
	}
}
