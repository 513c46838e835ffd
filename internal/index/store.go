package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/hash"
	"github.com/hupe1980/sparsego/internal/mmap"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/internal/resource"
)

// Blob names of a persisted index.
const (
	HeaderBlob = "header.spx"
	DocIDsBlob = "docids.bin"
	ValuesBlob = "values.bin"
)

const copyChunk = 64 * 1024

// OpenOptions controls how a persisted index is loaded.
type OpenOptions struct {
	// InMemory copies both posting streams into process memory.
	InMemory bool
	// VerifyChecksums checks both streams against the header CRCs on open.
	VerifyChecksums bool
	// Resource accounts in-memory bytes and throttles stream reads.
	Resource *resource.Controller
	// Location names the index in Stats.
	Location string
}

// writeIndex persists an index into store. The header is written last, so a
// store without a header never looks like a complete index.
func writeIndex(ctx context.Context, store blobstore.BlobStore, codec compress.Type,
	write func(docs, vals io.Writer) (*postings.IndexInfo, error)) (*postings.IndexInfo, error) {
	if l, ok := store.(blobstore.Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		defer func() { _ = unlock() }()
	}

	if err := store.Delete(ctx, HeaderBlob); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	docs, err := store.Create(ctx, DocIDsBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, DocIDsBlob, err)
	}
	vals, err := store.Create(ctx, ValuesBlob)
	if err != nil {
		_ = blobstore.Discard(docs)
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, ValuesBlob, err)
	}

	info, err := write(docs, vals)
	if err != nil {
		_ = errors.Join(blobstore.Discard(docs), blobstore.Discard(vals))
		return nil, err
	}
	if cerr := errors.Join(docs.Close(), vals.Close()); cerr != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, cerr)
	}

	header, err := postings.EncodeHeader(info, codec)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, HeaderBlob, header); err != nil {
		return nil, fmt.Errorf("%w: put %s: %w", ErrIO, HeaderBlob, err)
	}
	return info, nil
}

// Save writes the index into store. Both streams are copied concurrently.
func (ix *Index) Save(ctx context.Context, store blobstore.BlobStore, codec compress.Type) error {
	if !ix.TryIncRef() {
		return ErrClosed
	}
	defer ix.DecRef()

	_, err := writeIndex(ctx, store, codec, func(docs, vals io.Writer) (*postings.IndexInfo, error) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return copySource(gctx, docs, ix.streams.DocIDs) })
		g.Go(func() error { return copySource(gctx, vals, ix.streams.Values) })
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		return ix.info, nil
	})
	return err
}

func copySource(ctx context.Context, w io.Writer, src postings.Source) error {
	buf := make([]byte, copyChunk)
	size := src.Size()
	for off := uint64(0); off < size; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := int(min(uint64(copyChunk), size-off))
		b, err := src.View(off, n, buf)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		off += uint64(n)
	}
	return nil
}

// Open loads a persisted index from store.
//
// Missing blobs and read failures wrap ErrIO. A header that does not decode
// or does not match the streams wraps postings.ErrCorruptHeader.
func Open(ctx context.Context, store blobstore.BlobStore, opts OpenOptions) (*Index, error) {
	info, err := readHeader(ctx, store)
	if err != nil {
		return nil, err
	}

	docs, err := openStream(ctx, store, DocIDsBlob, info.DocIDsLen)
	if err != nil {
		return nil, err
	}
	vals, err := openStream(ctx, store, ValuesBlob, info.ValuesLen)
	if err != nil {
		_ = docs.Close()
		return nil, err
	}

	if opts.InMemory {
		defer docs.Close()
		defer vals.Close()
		return openInMemory(ctx, info, docs, vals, opts)
	}

	closeBlobs := func() error { return errors.Join(docs.Close(), vals.Close()) }
	if opts.VerifyChecksums {
		if err := verifyStream(ctx, DocIDsBlob, docs, info.DocIDsCRC, opts.Resource); err != nil {
			_ = closeBlobs()
			return nil, err
		}
		if err := verifyStream(ctx, ValuesBlob, vals, info.ValuesCRC, opts.Resource); err != nil {
			_ = closeBlobs()
			return nil, err
		}
	}

	streams := postings.Streams{
		DocIDs: blobSource(docs, opts.Resource),
		Values: blobSource(vals, opts.Resource),
	}
	return newIndex(info, streams, false, opts.Location, closeBlobs), nil
}

func readHeader(ctx context.Context, store blobstore.BlobStore) (*postings.IndexInfo, error) {
	b, err := store.Open(ctx, HeaderBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, HeaderBlob, err)
	}
	defer b.Close()

	buf, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, HeaderBlob, err)
	}
	return postings.DecodeHeader(buf)
}

func openStream(ctx context.Context, store blobstore.BlobStore, name string, want uint64) (blobstore.Blob, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, name, err)
	}
	if got := uint64(b.Size()); got != want {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, header expects %d", postings.ErrCorruptHeader, name, got, want)
	}
	return b, nil
}

func openInMemory(ctx context.Context, info *postings.IndexInfo, docs, vals blobstore.Blob, opts OpenOptions) (*Index, error) {
	rc := opts.Resource
	size := int64(info.DocIDsLen + info.ValuesLen)
	if err := rc.AcquireIO(ctx, int(size)); err != nil {
		return nil, err
	}

	docBytes, err := blobstore.ReadAll(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, DocIDsBlob, err)
	}
	valBytes, err := blobstore.ReadAll(ctx, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, ValuesBlob, err)
	}

	if opts.VerifyChecksums {
		if err := checkCRC(DocIDsBlob, hash.CRC32C(docBytes), info.DocIDsCRC); err != nil {
			return nil, err
		}
		if err := checkCRC(ValuesBlob, hash.CRC32C(valBytes), info.ValuesCRC); err != nil {
			return nil, err
		}
	}

	if err := rc.AcquireMemory(size); err != nil {
		return nil, err
	}
	streams := postings.Streams{
		DocIDs: postings.BytesSource(docBytes),
		Values: postings.BytesSource(valBytes),
	}
	return newIndex(info, streams, true, opts.Location, func() error {
		rc.ReleaseMemory(size)
		return nil
	}), nil
}

// blobSource serves a stream straight from mapped memory when the blob
// supports it and falls back to positioned reads otherwise.
func blobSource(b blobstore.Blob, rc *resource.Controller) postings.Source {
	if m, ok := b.(blobstore.Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			if a, ok := b.(interface{ Advise(mmap.AccessPattern) error }); ok {
				_ = a.Advise(mmap.AccessRandom)
			}
			return postings.BytesSource(data)
		}
	}
	return postings.ReaderAtSource{
		R:   throttledReaderAt{b: b, rc: rc},
		Len: uint64(b.Size()),
	}
}

// throttledReaderAt reads a blob under the IO rate limit. Reads outlive the
// Open call, so they run without a caller context.
type throttledReaderAt struct {
	b  blobstore.Blob
	rc *resource.Controller
}

func (r throttledReaderAt) ReadAt(p []byte, off int64) (int, error) {
	ctx := context.Background()
	if err := r.rc.AcquireIO(ctx, len(p)); err != nil {
		return 0, err
	}
	return r.b.ReadAt(ctx, p, off)
}

func verifyStream(ctx context.Context, name string, b blobstore.Blob, want uint32, rc *resource.Controller) error {
	if b.Size() == 0 {
		return checkCRC(name, 0, want)
	}
	if err := rc.AcquireIO(ctx, int(b.Size())); err != nil {
		return err
	}
	rd, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer rd.Close()

	h := hash.NewCRC32C()
	if _, err := io.Copy(h, rd); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return checkCRC(name, h.Sum32(), want)
}

func checkCRC(name string, got, want uint32) error {
	if got != want {
		return fmt.Errorf("%w: %w: %s crc %08x, header %08x", ErrIO, ErrChecksumMismatch, name, got, want)
	}
	return nil
}
