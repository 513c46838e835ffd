package query

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/internal/index"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/model"
)

// Source opens cursors over posting lists. *index.Index implements it.
type Source interface {
	Cursor(term model.TermIndex) (postings.Cursor, error)
}

var _ Source = (*index.Index)(nil)

// Term is a validated query term.
type Term struct {
	Index  model.TermIndex
	Weight float64
}

// Prepare validates q and returns its terms in ascending term order.
// Zero weights are dropped.
func Prepare(q model.Query) ([]Term, error) {
	terms := make([]Term, 0, len(q))
	for t, w := range q {
		f := float64(w)
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: term %d has weight %v", ErrInvalidQuery, t, w)
		}
		if f == 0 {
			continue
		}
		terms = append(terms, Term{Index: t, Weight: f})
	}
	slices.SortFunc(terms, func(a, b Term) int { return cmp.Compare(a.Index, b.Index) })
	return terms, nil
}

// Request describes one top-k search.
type Request struct {
	Query     model.Query
	K         int
	Algorithm Algorithm
	// Filter restricts results to the doc ids it contains. Nil allows all.
	Filter *roaring.Bitmap
}

// Search runs req against src. Cursor failures abort the search with
// index.ErrIO; a partial ranking is never returned.
func Search(src Source, req Request) ([]model.ScoredDocument, error) {
	if req.K < 0 {
		return nil, fmt.Errorf("%w: k = %d", ErrInvalidQuery, req.K)
	}
	strategy, err := Lookup(req.Algorithm)
	if err != nil {
		return nil, err
	}
	terms, err := Prepare(req.Query)
	if err != nil {
		return nil, err
	}
	if req.K == 0 || len(terms) == 0 {
		return []model.ScoredDocument{}, nil
	}

	scorers := make([]*Scorer, 0, len(terms))
	defer func() {
		for _, s := range scorers {
			_ = s.c.Close()
		}
	}()
	for _, t := range terms {
		c, err := src.Cursor(t.Index)
		if err != nil {
			return nil, err
		}
		scorers = append(scorers, newScorer(t, c))
	}

	top := NewTopK(req.K)
	strategy.Search(scorers, top, req.Filter)

	var errs []error
	for _, s := range scorers {
		if err := s.c.Err(); err != nil {
			errs = append(errs, fmt.Errorf("term %d: %w", s.Term, err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", index.ErrIO, errors.Join(errs...))
	}
	return top.Results(), nil
}
