package index

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/model"
)

// Index is an immutable, built impact index. It is shared by any number of
// concurrent readers; each cursor pins the index until it is closed, so
// Close only releases storage once the last cursor is gone.
type Index struct {
	refs     int64
	closed   atomic.Bool
	info     *postings.IndexInfo
	streams  postings.Streams
	inMemory bool
	location string

	mu       sync.Mutex
	cleanups []func() error
	closeErr error
}

func newIndex(info *postings.IndexInfo, streams postings.Streams, inMemory bool, location string, cleanup func() error) *Index {
	ix := &Index{
		refs:     1,
		info:     info,
		streams:  streams,
		inMemory: inMemory,
		location: location,
	}
	if cleanup != nil {
		ix.cleanups = append(ix.cleanups, cleanup)
	}
	return ix
}

func (ix *Index) addCleanup(f func() error) {
	ix.mu.Lock()
	ix.cleanups = append(ix.cleanups, f)
	ix.mu.Unlock()
}

// TryIncRef pins the index. It fails once the last reference is gone.
func (ix *Index) TryIncRef() bool {
	for {
		refs := atomic.LoadInt64(&ix.refs)
		if refs <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&ix.refs, refs, refs+1) {
			return true
		}
	}
}

// DecRef drops a reference taken with TryIncRef.
func (ix *Index) DecRef() {
	if atomic.AddInt64(&ix.refs, -1) == 0 {
		ix.release()
	}
}

// release runs cleanups in reverse registration order.
func (ix *Index) release() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var errs []error
	for i := len(ix.cleanups) - 1; i >= 0; i-- {
		if err := ix.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	ix.cleanups = nil
	ix.closeErr = errors.Join(errs...)
}

// Close drops the owner's reference. Storage is released when the last
// open cursor is closed. Close is idempotent.
func (ix *Index) Close() error {
	if ix.closed.Swap(true) {
		return nil
	}
	ix.DecRef()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.closeErr
}

// Closed reports whether Close has been called.
func (ix *Index) Closed() bool {
	return ix.closed.Load()
}

// Info returns the decoded index metadata. It must not be modified.
func (ix *Index) Info() *postings.IndexInfo {
	return ix.info
}

// Streams exposes the raw posting streams.
func (ix *Index) Streams() postings.Streams {
	return ix.streams
}

// Cursor opens a cursor over the posting list of term. Unknown terms yield
// an exhausted cursor. The cursor must be closed.
func (ix *Index) Cursor(term model.TermIndex) (postings.Cursor, error) {
	if ix.closed.Load() || !ix.TryIncRef() {
		return nil, ErrClosed
	}
	ti, ok := ix.info.Term(term)
	if !ok {
		return postings.EmptyCursor(ix.DecRef), nil
	}
	return postings.NewCursor(ti, ix.streams, ix.DecRef), nil
}

// Postings iterates the posting list of term in ascending doc order.
func (ix *Index) Postings(term model.TermIndex) iter.Seq2[model.TermImpact, error] {
	return func(yield func(model.TermImpact, error) bool) {
		c, err := ix.Cursor(term)
		if err != nil {
			yield(model.TermImpact{}, err)
			return
		}
		defer c.Close()

		for {
			rec, ok := c.Next()
			if !ok {
				break
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(model.TermImpact{}, fmt.Errorf("%w: term %d: %w", ErrIO, term, err))
		}
	}
}

// Stats describes a built index.
type Stats struct {
	NumDocs     uint32 `json:"num_docs"`
	NumTerms    int    `json:"num_terms"`
	NumPostings uint64 `json:"num_postings"`
	NumPages    int    `json:"num_pages"`
	PageSize    uint32 `json:"page_size"`
	DocIDsBytes uint64 `json:"docids_bytes"`
	ValuesBytes uint64 `json:"values_bytes"`
	InMemory    bool   `json:"in_memory"`
	Location    string `json:"location,omitempty"`
}

// Stats returns summary statistics.
func (ix *Index) Stats() Stats {
	return Stats{
		NumDocs:     ix.info.NumDocs,
		NumTerms:    ix.info.NumTerms(),
		NumPostings: ix.info.NumPostings,
		NumPages:    ix.info.NumPages(),
		PageSize:    ix.info.PageSize,
		DocIDsBytes: ix.info.DocIDsLen,
		ValuesBytes: ix.info.ValuesLen,
		InMemory:    ix.inMemory,
		Location:    ix.location,
	}
}
