package sparsego

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/internal/query"
	"github.com/hupe1980/sparsego/model"
)

// Algorithm selects a top-k retrieval strategy.
type Algorithm = query.Algorithm

const (
	// MaxScore partitions query terms into essential and non-essential sets.
	MaxScore = query.MaxScore
	// Wand is block-max WAND.
	Wand = query.Wand
)

// ParseAlgorithm parses an algorithm name such as "wand" or "maxscore",
// case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	return query.ParseAlgorithm(s)
}

// DefaultTopK is the number of results returned when TopK is not set.
const DefaultTopK = 10

// SearchBuilder is a fluent builder for constructing search queries.
//
// Example:
//
//	results, err := idx.Search(model.Query{5: 1, 9: 0.5}).
//	    TopK(10).
//	    Algorithm(sparsego.Wand).
//	    Execute(ctx)
type SearchBuilder struct {
	resolve   func() (*Index, error)
	query     model.Query
	k         int
	algorithm Algorithm
	filter    *roaring.Bitmap
}

func newSearchBuilder(resolve func() (*Index, error), q model.Query) *SearchBuilder {
	return &SearchBuilder{
		resolve:   resolve,
		query:     q,
		k:         DefaultTopK,
		algorithm: MaxScore,
	}
}

// TopK sets the number of results to return. 0 yields an empty result.
func (sb *SearchBuilder) TopK(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Algorithm selects the retrieval strategy. Both strategies return the same
// ranking; they differ only in how much of the index they touch.
func (sb *SearchBuilder) Algorithm(a Algorithm) *SearchBuilder {
	sb.algorithm = a
	return sb
}

// Filter restricts results to the doc ids in allow.
func (sb *SearchBuilder) Filter(allow *roaring.Bitmap) *SearchBuilder {
	sb.filter = allow
	return sb
}

// Execute runs the search and returns documents by descending score, ties
// by ascending doc id. Searches are not cancellable; ctx only carries
// logging values.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]model.ScoredDocument, error) {
	idx, err := sb.resolve()
	if err != nil {
		return nil, err
	}
	return sb.run(context.WithoutCancel(ctx), idx)
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []model.ScoredDocument {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// ExecuteAsync runs the search on its own goroutine once a search slot is
// free (see WithMaxConcurrentSearches). The search runs to completion even
// if ctx is canceled.
func (sb *SearchBuilder) ExecuteAsync(ctx context.Context) *Future {
	ctx = context.WithoutCancel(ctx)
	f := &Future{done: make(chan struct{})}
	req := *sb

	go func() {
		defer close(f.done)

		idx, err := req.resolve()
		if err != nil {
			f.err = err
			return
		}
		if err := idx.rc.AcquireSearch(ctx); err != nil {
			f.err = err
			return
		}
		defer idx.rc.ReleaseSearch()

		f.results, f.err = req.run(ctx, idx)
	}()
	return f
}

func (sb *SearchBuilder) run(ctx context.Context, idx *Index) ([]model.ScoredDocument, error) {
	start := time.Now()
	results, err := query.Search(idx.ix, query.Request{
		Query:     sb.query,
		K:         sb.k,
		Algorithm: sb.algorithm,
		Filter:    sb.filter,
	})
	err = translateError(err)

	idx.opts.metricsCollector.RecordSearch(sb.algorithm.String(), sb.k, len(results), time.Since(start), err)
	idx.opts.logger.LogSearch(ctx, sb.algorithm.String(), sb.k, len(results), err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Future is the pending result of ExecuteAsync.
type Future struct {
	done    chan struct{}
	results []model.ScoredDocument
	err     error
}

// Done is closed when the search has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the search finishes or ctx is done. Giving up on the
// wait does not stop the search.
func (f *Future) Wait(ctx context.Context) ([]model.ScoredDocument, error) {
	select {
	case <-f.done:
		return f.results, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
