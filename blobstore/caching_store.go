package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sparsego/internal/cache"
)

// DefaultCacheBlockSize is the cache granularity used when none is given.
const DefaultCacheBlockSize = 64 << 10

const maxFillConcurrency = 16

// CachingStore serves reads of an inner store from a shared block cache.
// Writes go straight through and evict the blocks of the blob they replace.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner. A blockSize <= 0 selects DefaultCacheBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultCacheBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedBlob{Blob: b, store: s, name: name}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.evict(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.evict(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.evict(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) evict(name string) {
	s.cache.Invalidate(func(key cache.CacheKey) bool {
		return key.Kind == cache.CacheKindBlob && key.Path == name
	})
}

// cachedBlob embeds the inner Blob for Size and Close. It never satisfies
// Mappable, so readers always go through ReadAt.
type cachedBlob struct {
	Blob
	store *CachingStore
	name  string
}

func (b *cachedBlob) key(blk int64) cache.CacheKey {
	return cache.CacheKey{Kind: cache.CacheKindBlob, Path: b.name, Offset: uint64(blk)}
}

// ReadAt assembles p from cached blocks. Missing blocks are fetched in
// contiguous runs, one backend read per run.
func (b *cachedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), size)
	bs := b.store.blockSize
	first, last := off/bs, (end-1)/bs

	blocks := make([][]byte, last-first+1)
	for i := range blocks {
		if data, ok := b.store.cache.Get(ctx, b.key(first+int64(i))); ok {
			blocks[i] = data
		}
	}
	if err := b.fill(ctx, first, blocks); err != nil {
		return 0, err
	}

	n := 0
	for i, data := range blocks {
		start := (first + int64(i)) * bs
		lo := max(off-start, 0)
		if lo >= int64(len(data)) {
			break
		}
		n += copy(p[n:end-off], data[lo:])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fill loads every nil entry of blocks, where blocks[i] holds block first+i.
func (b *cachedBlob) fill(ctx context.Context, first int64, blocks [][]byte) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFillConcurrency)

	for i := 0; i < len(blocks); {
		if blocks[i] != nil {
			i++
			continue
		}
		j := i
		for j < len(blocks) && blocks[j] == nil {
			j++
		}
		lo, hi := i, j
		g.Go(func() error { return b.fetchRun(gctx, blocks[lo:hi], first+int64(lo)) })
		i = j
	}
	return g.Wait()
}

// fetchRun reads the blocks starting at block start into dst and caches each.
func (b *cachedBlob) fetchRun(ctx context.Context, dst [][]byte, start int64) error {
	bs := b.store.blockSize
	from := start * bs
	buf := make([]byte, min(int64(len(dst))*bs, b.Size()-from))
	n, err := b.Blob.ReadAt(ctx, buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	buf = buf[:n]

	for i := range dst {
		lo := int64(i) * bs
		if lo >= int64(len(buf)) {
			dst[i] = []byte{}
			continue
		}
		// Each cached block owns its backing array.
		blk := append([]byte(nil), buf[lo:min(lo+bs, int64(len(buf)))]...)
		dst[i] = blk
		b.store.cache.Set(ctx, b.key(start+int64(i)), blk)
	}
	return nil
}

func (b *cachedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.Size() {
		return nil, io.EOF
	}
	return io.NopCloser(&rangeReader{ctx: ctx, blob: b, off: off, end: min(off+length, b.Size())}), nil
}

// rangeReader turns positioned reads into an io.Reader over [off, end).
type rangeReader struct {
	ctx  context.Context
	blob Blob
	off  int64
	end  int64
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	p = p[:min(int64(len(p)), r.end-r.off)]
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}
