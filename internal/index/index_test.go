package index

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/cache"
	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/fs"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/internal/resource"
	"github.com/hupe1980/sparsego/model"
)

type doc struct {
	id     model.DocID
	terms  []model.TermIndex
	values []model.ImpactValue
}

var fixture = []doc{
	{1, []model.TermIndex{5}, []model.ImpactValue{2}},
	{2, []model.TermIndex{5, 9}, []model.ImpactValue{1, 3}},
	{7, []model.TermIndex{9, 1}, []model.ImpactValue{0.5, 4}},
	{4, []model.TermIndex{5}, []model.ImpactValue{6}},
}

func newFilledBuilder(t *testing.T, pageSize int) *Builder {
	t.Helper()
	b, err := NewBuilder(pageSize)
	require.NoError(t, err)
	for _, d := range fixture {
		require.NoError(t, b.Add(d.id, d.terms, d.values))
	}
	return b
}

func collect(t *testing.T, ix *Index, term model.TermIndex) []model.TermImpact {
	t.Helper()
	var out []model.TermImpact
	for rec, err := range ix.Postings(term) {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func assertFixture(t *testing.T, ix *Index) {
	t.Helper()
	assert.Equal(t, []model.TermImpact{{DocID: 1, Value: 2}, {DocID: 2, Value: 1}, {DocID: 4, Value: 6}}, collect(t, ix, 5))
	assert.Equal(t, []model.TermImpact{{DocID: 2, Value: 3}, {DocID: 7, Value: 0.5}}, collect(t, ix, 9))
	assert.Equal(t, []model.TermImpact{{DocID: 7, Value: 4}}, collect(t, ix, 1))
	assert.Empty(t, collect(t, ix, 42))

	st := ix.Stats()
	assert.Equal(t, uint32(4), st.NumDocs)
	assert.Equal(t, 3, st.NumTerms)
	assert.Equal(t, uint64(6), st.NumPostings)
}

func TestNewBuilderPageSize(t *testing.T) {
	for _, size := range []int{0, -1, postings.MaxPageSize + 1} {
		_, err := NewBuilder(size)
		assert.ErrorIs(t, err, postings.ErrInvalidPageSize)
	}
}

func TestBuilderAddValidation(t *testing.T) {
	b, err := NewBuilder(2)
	require.NoError(t, err)
	require.NoError(t, b.Add(1, []model.TermIndex{3}, []model.ImpactValue{1}))

	t.Run("shape mismatch", func(t *testing.T) {
		err := b.Add(2, []model.TermIndex{1, 2}, []model.ImpactValue{1})
		require.ErrorIs(t, err, ErrShapeMismatch)
		var sm *ShapeMismatchError
		require.ErrorAs(t, err, &sm)
		assert.Equal(t, 2, sm.Terms)
		assert.Equal(t, 1, sm.Values)
	})

	t.Run("duplicate document", func(t *testing.T) {
		assert.ErrorIs(t, b.Add(1, []model.TermIndex{4}, []model.ImpactValue{1}), ErrDuplicateDocument)
	})

	t.Run("duplicate term", func(t *testing.T) {
		assert.ErrorIs(t, b.Add(2, []model.TermIndex{4, 4}, []model.ImpactValue{1, 2}), ErrDuplicateTerm)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, v := range []float32{-1, float32(math.NaN()), float32(math.Inf(1))} {
			assert.ErrorIs(t, b.Add(2, []model.TermIndex{4}, []model.ImpactValue{model.ImpactValue(v)}), ErrInvalidValue)
		}
	})

	assert.Equal(t, uint64(1), b.NumDocs())
	assert.Equal(t, 1, b.NumPostings(), "rejected documents must not leave postings behind")

	// The rejected doc id is still free.
	require.NoError(t, b.Add(2, nil, nil))
	assert.Equal(t, uint64(2), b.NumDocs())
}

func TestBuildInMemory(t *testing.T) {
	b := newFilledBuilder(t, 2)
	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
	require.NoError(t, err)
	defer ix.Close()

	assertFixture(t, ix)
	assert.True(t, ix.Stats().InMemory)
	assert.True(t, b.Built())

	assert.ErrorIs(t, b.Add(99, []model.TermIndex{1}, []model.ImpactValue{1}), ErrAlreadyBuilt)
	_, err = b.Build(context.Background(), BuildOptions{InMemory: true})
	assert.ErrorIs(t, err, ErrAlreadyBuilt)
}

func TestBuildEmpty(t *testing.T) {
	b, err := NewBuilder(postings.DefaultPageSize)
	require.NoError(t, err)
	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, 0, ix.Stats().NumTerms)
	assert.Empty(t, collect(t, ix, 1))
}

func TestBuildCanceled(t *testing.T) {
	b := newFilledBuilder(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, BuildOptions{InMemory: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Built())

	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
	require.NoError(t, err)
	defer ix.Close()
	assertFixture(t, ix)
}

func TestBuildPersistedTempDir(t *testing.T) {
	b := newFilledBuilder(t, 2)
	ix, err := b.Build(context.Background(), BuildOptions{TempDir: t.TempDir()})
	require.NoError(t, err)

	assertFixture(t, ix)
	dir := ix.Stats().Location
	assert.False(t, ix.Stats().InMemory)
	assert.DirExists(t, dir)

	require.NoError(t, ix.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildPersistedStore(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewLocalStore(dir)

	b := newFilledBuilder(t, 3)
	ix, err := b.Build(context.Background(), BuildOptions{Store: store, Codec: compress.ZSTD})
	require.NoError(t, err)
	assertFixture(t, ix)
	assert.Equal(t, dir, ix.Stats().Location)
	require.NoError(t, ix.Close())

	// The store outlives the index.
	assert.FileExists(t, dir+"/"+HeaderBlob)

	for _, inMemory := range []bool{false, true} {
		ix, err := Open(context.Background(), store, OpenOptions{InMemory: inMemory, VerifyChecksums: true})
		require.NoError(t, err)
		assertFixture(t, ix)
		require.NoError(t, ix.Close())
	}
}

func TestSaveAndOpen(t *testing.T) {
	for _, codec := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(codec.String(), func(t *testing.T) {
			b := newFilledBuilder(t, 2)
			ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
			require.NoError(t, err)
			defer ix.Close()

			store := blobstore.NewMemoryStore()
			require.NoError(t, ix.Save(context.Background(), store, codec))

			names, err := store.List(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, []string{DocIDsBlob, HeaderBlob, ValuesBlob}, names)

			for _, inMemory := range []bool{false, true} {
				loaded, err := Open(context.Background(), store, OpenOptions{InMemory: inMemory, VerifyChecksums: true})
				require.NoError(t, err)
				assertFixture(t, loaded)
				require.NoError(t, loaded.Close())
			}
		})
	}
}

func TestSaveWriteFailures(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		fault   fs.Fault
	}{
		{"values write", ValuesBlob, fs.Fault{FailAfterBytes: 4}},
		{"docids sync", DocIDsBlob, fs.Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"header rename", HeaderBlob, fs.Fault{FailAfterBytes: -1, FailOnRename: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			b := newFilledBuilder(t, 2)
			ix, err := b.Build(ctx, BuildOptions{Store: blobstore.NewLocalStore(dir)})
			require.NoError(t, err)
			defer ix.Close()

			ffs := fs.NewFaultyFS(nil)
			ffs.AddRule(tt.pattern, tt.fault)
			err = ix.Save(ctx, blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs)), compress.None)
			require.ErrorIs(t, err, ErrIO)
			assert.ErrorIs(t, err, fs.ErrInjected)

			// The old header was removed before the streams were rewritten.
			assert.NoFileExists(t, dir+"/"+HeaderBlob)
			_, err = Open(ctx, blobstore.NewLocalStore(dir), OpenOptions{})
			assert.ErrorIs(t, err, ErrIO)

			// The open index keeps serving from its own mappings.
			assertFixture(t, ix)
		})
	}
}

func TestOpenReaderAtFallback(t *testing.T) {
	b := newFilledBuilder(t, 2)
	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
	require.NoError(t, err)
	defer ix.Close()

	store := blobstore.NewMemoryStore()
	require.NoError(t, ix.Save(context.Background(), store, compress.None))

	// The caching wrapper hides Mappable, forcing positioned reads.
	cached := blobstore.NewCachingStore(store, cache.NewLRUBlockCache(1<<20, nil), 16)
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	loaded, err := Open(context.Background(), cached, OpenOptions{Resource: rc, VerifyChecksums: true})
	require.NoError(t, err)
	defer loaded.Close()

	_, ok := loaded.Streams().DocIDs.(postings.ReaderAtSource)
	assert.True(t, ok)
	assertFixture(t, loaded)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	saved := func(t *testing.T) *blobstore.MemoryStore {
		t.Helper()
		b := newFilledBuilder(t, 2)
		ix, err := b.Build(ctx, BuildOptions{InMemory: true})
		require.NoError(t, err)
		defer ix.Close()
		store := blobstore.NewMemoryStore()
		require.NoError(t, ix.Save(ctx, store, compress.None))
		return store
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(ctx, blobstore.NewLocalStore(t.TempDir()+"/nope"), OpenOptions{})
		assert.ErrorIs(t, err, ErrIO)
	})

	t.Run("missing stream", func(t *testing.T) {
		store := saved(t)
		require.NoError(t, store.Delete(ctx, ValuesBlob))
		_, err := Open(ctx, store, OpenOptions{})
		assert.ErrorIs(t, err, ErrIO)
	})

	t.Run("garbage header", func(t *testing.T) {
		store := saved(t)
		require.NoError(t, store.Put(ctx, HeaderBlob, []byte("not an index header")))
		_, err := Open(ctx, store, OpenOptions{})
		assert.ErrorIs(t, err, postings.ErrCorruptHeader)
	})

	t.Run("truncated stream", func(t *testing.T) {
		store := saved(t)
		require.NoError(t, store.Put(ctx, DocIDsBlob, []byte{1, 2, 3, 4}))
		_, err := Open(ctx, store, OpenOptions{InMemory: true})
		assert.ErrorIs(t, err, postings.ErrCorruptHeader)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		for _, inMemory := range []bool{false, true} {
			store := saved(t)
			b, err := store.Open(ctx, ValuesBlob)
			require.NoError(t, err)
			data, err := blobstore.ReadAll(ctx, b)
			require.NoError(t, err)
			require.NoError(t, b.Close())

			data[0] ^= 0xFF
			require.NoError(t, store.Put(ctx, ValuesBlob, data))

			_, err = Open(ctx, store, OpenOptions{InMemory: inMemory, VerifyChecksums: true})
			assert.ErrorIs(t, err, ErrIO)
			assert.ErrorIs(t, err, ErrChecksumMismatch)
		}
	})
}

func TestIndexRefCounting(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	b := newFilledBuilder(t, 2)
	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true, Open: OpenOptions{Resource: rc}})
	require.NoError(t, err)
	assert.Positive(t, rc.MemoryUsage())

	c, err := ix.Cursor(5)
	require.NoError(t, err)

	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())
	assert.True(t, ix.Closed())

	// An open cursor keeps the index readable.
	rec, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, model.DocID(1), rec.DocID)
	assert.Positive(t, rc.MemoryUsage())

	_, err = ix.Cursor(5)
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Zero(t, rc.MemoryUsage())
	assert.False(t, ix.TryIncRef())

	for _, err := range ix.Postings(5) {
		assert.ErrorIs(t, err, ErrClosed)
	}
	assert.ErrorIs(t, ix.Save(context.Background(), blobstore.NewMemoryStore(), compress.None), ErrClosed)
}

func TestConcurrentAdd(t *testing.T) {
	b, err := NewBuilder(8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := model.DocID(w*100 + i)
				assert.NoError(t, b.Add(id, []model.TermIndex{model.TermIndex(i % 5)}, []model.ImpactValue{1}))
			}
		}(w)
	}
	wg.Wait()

	ix, err := b.Build(context.Background(), BuildOptions{InMemory: true})
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, uint32(800), ix.Stats().NumDocs)
	total := 0
	for term := model.TermIndex(0); term < 5; term++ {
		list := collect(t, ix, term)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].DocID, list[i].DocID)
		}
		total += len(list)
	}
	assert.Equal(t, 800, total)
}
