package index

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/internal/resource"
	"github.com/hupe1980/sparsego/model"
)

type posting struct {
	term  model.TermIndex
	doc   model.DocID
	value model.ImpactValue
}

// Builder accumulates documents and compiles them into an immutable Index.
// All methods are safe for concurrent use; ingestion is serialized.
type Builder struct {
	mu       sync.Mutex
	pageSize int
	docs     *roaring.Bitmap
	postings []posting
	seen     map[model.TermIndex]struct{}
	built    bool
}

// NewBuilder creates a builder that cuts posting lists into pages of
// pageSize records.
func NewBuilder(pageSize int) (*Builder, error) {
	if pageSize <= 0 || pageSize > postings.MaxPageSize {
		return nil, fmt.Errorf("%w: %d", postings.ErrInvalidPageSize, pageSize)
	}
	return &Builder{
		pageSize: pageSize,
		docs:     roaring.New(),
		seen:     make(map[model.TermIndex]struct{}),
	}, nil
}

// Add records one document. A rejected document leaves the builder unchanged.
func (b *Builder) Add(doc model.DocID, terms []model.TermIndex, values []model.ImpactValue) error {
	if len(terms) != len(values) {
		return &ShapeMismatchError{Terms: len(terms), Values: len(values)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return ErrAlreadyBuilt
	}
	if b.docs.Contains(uint32(doc)) {
		return fmt.Errorf("%w: %d", ErrDuplicateDocument, doc)
	}

	clear(b.seen)
	for i, t := range terms {
		if !values[i].Valid() {
			return fmt.Errorf("%w: doc %d term %d: %v", ErrInvalidValue, doc, t, values[i])
		}
		if _, dup := b.seen[t]; dup {
			return fmt.Errorf("%w: doc %d term %d", ErrDuplicateTerm, doc, t)
		}
		b.seen[t] = struct{}{}
	}

	b.docs.Add(uint32(doc))
	for i, t := range terms {
		b.postings = append(b.postings, posting{term: t, doc: doc, value: values[i]})
	}
	return nil
}

// NumDocs returns the number of documents added so far.
func (b *Builder) NumDocs() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docs.GetCardinality()
}

// NumPostings returns the number of (term, document) pairs added so far.
func (b *Builder) NumPostings() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.postings)
}

// Built reports whether Build has succeeded.
func (b *Builder) Built() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built
}

// BuildOptions controls where a built index lives.
type BuildOptions struct {
	// InMemory keeps both posting streams in process memory.
	InMemory bool
	// Store receives the persisted index when InMemory is false. If nil, a
	// private temporary directory is used and removed when the index closes.
	Store blobstore.BlobStore
	// TempDir is the parent of the private temporary directory ("" = os.TempDir).
	TempDir string
	// Codec compresses the persisted term table.
	Codec compress.Type
	// Open configures how a persisted index is reopened.
	Open OpenOptions
}

// Build compiles every added document into an Index. It holds the
// ingestion lock for its whole duration, so it waits for an in-flight Add
// and later calls observe the built state. If compilation fails the
// builder keeps its documents and Build may be retried.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return nil, ErrAlreadyBuilt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(b.postings, func(x, y posting) int {
		if c := cmp.Compare(x.term, y.term); c != 0 {
			return c
		}
		return cmp.Compare(x.doc, y.doc)
	})

	var (
		ix  *Index
		err error
	)
	if opts.InMemory {
		ix, err = b.buildInMemory(opts.Open.Resource)
	} else {
		ix, err = b.buildPersisted(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	b.built = true
	b.postings = nil
	return ix, nil
}

func (b *Builder) numDocs() uint32 {
	return uint32(min(b.docs.GetCardinality(), 1<<32-1))
}

// compile streams the sorted postings into w, one term at a time.
func (b *Builder) compile(w *postings.Writer) (*postings.IndexInfo, error) {
	var list []model.TermImpact
	for i := 0; i < len(b.postings); {
		term := b.postings[i].term
		list = list[:0]
		for ; i < len(b.postings) && b.postings[i].term == term; i++ {
			list = append(list, model.TermImpact{DocID: b.postings[i].doc, Value: b.postings[i].value})
		}
		if err := w.WriteTerm(term, list); err != nil {
			return nil, err
		}
	}
	return w.Finish(b.numDocs())
}

func (b *Builder) buildInMemory(rc *resource.Controller) (*Index, error) {
	size := int64(len(b.postings)) * postings.RecordSize
	var docs, vals bytes.Buffer
	docs.Grow(int(size))
	vals.Grow(int(size))

	w, err := postings.NewWriter(&docs, &vals, b.pageSize)
	if err != nil {
		return nil, err
	}
	info, err := b.compile(w)
	if err != nil {
		return nil, err
	}

	if err := rc.AcquireMemory(2 * size); err != nil {
		return nil, err
	}
	streams := postings.Streams{
		DocIDs: postings.BytesSource(docs.Bytes()),
		Values: postings.BytesSource(vals.Bytes()),
	}
	return newIndex(info, streams, true, "memory", func() error {
		rc.ReleaseMemory(2 * size)
		return nil
	}), nil
}

func (b *Builder) buildPersisted(ctx context.Context, opts BuildOptions) (*Index, error) {
	store := opts.Store
	var cleanup func() error
	if store == nil {
		dir, err := os.MkdirTemp(opts.TempDir, "sparsego-*")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		store = blobstore.NewLocalStore(dir)
		cleanup = func() error { return os.RemoveAll(dir) }
	}
	if ls, ok := store.(*blobstore.LocalStore); ok && opts.Open.Location == "" {
		opts.Open.Location = ls.Root()
	}

	_, err := writeIndex(ctx, store, opts.Codec, func(docs, vals io.Writer) (*postings.IndexInfo, error) {
		w, err := postings.NewWriter(docs, vals, b.pageSize)
		if err != nil {
			return nil, err
		}
		info, err := b.compile(w)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		return info, nil
	})
	if err != nil {
		if cleanup != nil {
			_ = cleanup()
		}
		return nil, err
	}

	ix, err := Open(ctx, store, opts.Open)
	if err != nil {
		if cleanup != nil {
			_ = cleanup()
		}
		return nil, err
	}
	if cleanup != nil {
		ix.addCleanup(cleanup)
	}
	return ix, nil
}
