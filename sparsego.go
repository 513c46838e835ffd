package sparsego

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/cache"
	"github.com/hupe1980/sparsego/internal/index"
	"github.com/hupe1980/sparsego/internal/resource"
	"github.com/hupe1980/sparsego/model"
)

// Stats describes a built index.
type Stats = index.Stats

// Indexer accepts documents and builds them into an Index.
// All methods are safe for concurrent use.
type Indexer struct {
	b    *index.Builder
	opts options
	rc   *resource.Controller

	mu    sync.RWMutex
	built *Index
}

// New creates an Indexer.
func New(optFns ...Option) (*Indexer, error) {
	o := applyOptions(optFns)
	b, err := index.NewBuilder(o.pageSize)
	if err != nil {
		return nil, err
	}
	return &Indexer{
		b:    b,
		opts: o,
		rc:   o.resourceController(),
	}, nil
}

// Add records a document as parallel term and value slices. Rejected
// documents leave the Indexer unchanged.
func (ix *Indexer) Add(ctx context.Context, doc model.DocID, terms []model.TermIndex, values []model.ImpactValue) error {
	start := time.Now()
	err := ix.b.Add(doc, terms, values)
	ix.opts.metricsCollector.RecordAdd(time.Since(start), err)
	ix.opts.logger.LogAdd(ctx, uint32(doc), len(terms), err)
	return err
}

// AddVector records a document given as a SparseVector.
func (ix *Indexer) AddVector(ctx context.Context, doc model.DocID, vec model.SparseVector) error {
	return ix.Add(ctx, doc, vec.Terms, vec.Values)
}

// Build compiles every added document into an Index. With inMemory the
// posting streams live in process memory; otherwise they are written to the
// configured store or directory (or a private temporary directory) and read
// back through memory mappings or ranged reads. After a successful Build,
// Add fails with ErrAlreadyBuilt.
func (ix *Indexer) Build(ctx context.Context, inMemory bool) (*Index, error) {
	start := time.Now()

	bo := index.BuildOptions{
		InMemory: inMemory,
		TempDir:  ix.opts.tempDir,
		Codec:    ix.opts.codec,
		Open: index.OpenOptions{
			Resource:        ix.rc,
			VerifyChecksums: ix.opts.verifyChecksum,
		},
	}
	if !inMemory {
		switch {
		case ix.opts.store != nil:
			bo.Store = ix.opts.store
		case ix.opts.dir != "":
			bo.Store = blobstore.NewLocalStore(ix.opts.dir)
		}
	}

	built, err := ix.b.Build(ctx, bo)
	err = translateError(err)
	var stats Stats
	if err == nil {
		stats = built.Stats()
	}
	ix.opts.metricsCollector.RecordBuild(stats.NumPostings, time.Since(start), err)
	ix.opts.logger.LogBuild(ctx, stats, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	idx := &Index{ix: built, opts: ix.opts, rc: ix.rc}
	ix.mu.Lock()
	ix.built = idx
	ix.mu.Unlock()
	return idx, nil
}

// Built reports whether Build has succeeded.
func (ix *Indexer) Built() bool {
	return ix.b.Built()
}

// Index returns the built index, or ErrNotBuilt.
func (ix *Indexer) Index() (*Index, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.built == nil {
		return nil, ErrNotBuilt
	}
	return ix.built, nil
}

// Search starts a search against the built index. Executing it before
// Build fails with ErrNotBuilt.
func (ix *Indexer) Search(q model.Query) *SearchBuilder {
	return newSearchBuilder(ix.Index, q)
}

// Postings iterates the posting list of term in the built index.
func (ix *Indexer) Postings(term model.TermIndex) iter.Seq2[model.TermImpact, error] {
	idx, err := ix.Index()
	if err != nil {
		return func(yield func(model.TermImpact, error) bool) {
			yield(model.TermImpact{}, err)
		}
	}
	return idx.Postings(term)
}

// Index is an immutable, searchable impact index. It is safe for
// concurrent use and must be closed.
type Index struct {
	ix    *index.Index
	opts  options
	rc    *resource.Controller
	cache cache.BlockCache
}

// Load opens the index persisted in directory path.
func Load(ctx context.Context, path string, inMemory bool, optFns ...Option) (*Index, error) {
	return open(ctx, blobstore.NewLocalStore(path), path, inMemory, applyOptions(optFns))
}

// Open opens an index persisted in store. Remote stores can be fronted by
// a block cache with WithBlockCacheSize.
func Open(ctx context.Context, store blobstore.BlobStore, inMemory bool, optFns ...Option) (*Index, error) {
	location := fmt.Sprintf("%T", store)
	if ls, ok := store.(*blobstore.LocalStore); ok {
		location = ls.Root()
	}
	return open(ctx, store, location, inMemory, applyOptions(optFns))
}

func open(ctx context.Context, store blobstore.BlobStore, location string, inMemory bool, o options) (*Index, error) {
	start := time.Now()
	rc := o.resourceController()

	var bc cache.BlockCache
	if _, local := store.(*blobstore.LocalStore); !local && !inMemory && o.blockCacheSize > 0 {
		bc = cache.NewLRUBlockCache(o.blockCacheSize, rc)
		store = blobstore.NewCachingStore(store, bc, blobstore.DefaultCacheBlockSize)
	}

	built, err := index.Open(ctx, store, index.OpenOptions{
		InMemory:        inMemory,
		VerifyChecksums: o.verifyChecksum,
		Resource:        rc,
		Location:        location,
	})
	err = translateError(err)
	o.metricsCollector.RecordLoad(inMemory, time.Since(start), err)
	o.logger.LogLoad(ctx, location, inMemory, err)
	if err != nil {
		if bc != nil {
			_ = bc.Close()
		}
		return nil, err
	}

	return &Index{ix: built, opts: o, rc: rc, cache: bc}, nil
}

// Search starts a search against the index.
func (idx *Index) Search(q model.Query) *SearchBuilder {
	return newSearchBuilder(func() (*Index, error) { return idx, nil }, q)
}

// Postings iterates the posting list of term in ascending doc order.
// Unknown terms yield nothing.
func (idx *Index) Postings(term model.TermIndex) iter.Seq2[model.TermImpact, error] {
	return func(yield func(model.TermImpact, error) bool) {
		for rec, err := range idx.ix.Postings(term) {
			if !yield(rec, translateError(err)) {
				return
			}
		}
	}
}

// Stats returns summary statistics.
func (idx *Index) Stats() Stats {
	return idx.ix.Stats()
}

// Save persists the index into store. The header is written last.
func (idx *Index) Save(ctx context.Context, store blobstore.BlobStore) error {
	err := translateError(idx.ix.Save(ctx, store, idx.opts.codec))
	idx.opts.logger.LogSave(ctx, err)
	return err
}

// SaveDir persists the index into directory path.
func (idx *Index) SaveDir(ctx context.Context, path string) error {
	return idx.Save(ctx, blobstore.NewLocalStore(path))
}

// Close releases the index. Searches and cursors already running finish
// first; new ones fail with ErrClosed. Close is idempotent.
func (idx *Index) Close() error {
	err := idx.ix.Close()
	if idx.cache != nil {
		if cerr := idx.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
