package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsego/internal/fs"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	blobName := "shard-0/docids.bin"
	data := []byte("hello world, this is a test blob for sparsego")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)

	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Not visible before Close.
	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(tmpDir, "shard-0", "docids.bin"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	rangeReader, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	defer rangeReader.Close()

	rangeContent, err := io.ReadAll(rangeReader)
	require.NoError(t, err)
	require.Equal(t, "this", string(rangeContent))

	mapped, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	require.Equal(t, data, mapped)

	require.NoError(t, store.Put(ctx, "shard-0/values.bin", []byte("v")))
	require.NoError(t, store.Put(ctx, "other.bin", []byte("o")))

	blobs, err := store.List(ctx, "shard-0/")
	require.NoError(t, err)
	require.Equal(t, []string{"shard-0/docids.bin", "shard-0/values.bin"}, blobs)

	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName))

	blobsAfter, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"other.bin", "shard-0/values.bin"}, blobsAfter)

	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_ReadRange_Boundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "boundary.bin", data))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	require.True(t, bytes.Equal(data, content))

	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	r.Close()

	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
}

func TestLocalBlobStore_WriteFaults(t *testing.T) {
	tmpDir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("broken", fs.Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("stuck", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	store := NewLocalStore(tmpDir, WithFileSystem(ffs))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ok.bin", []byte("data")))
	assert.ErrorIs(t, store.Put(ctx, "broken.bin", []byte("data")), fs.ErrInjected)
	assert.ErrorIs(t, store.Put(ctx, "stuck.bin", []byte("data")), fs.ErrInjected)

	// Failed writes leave neither the target nor a temporary file behind.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok.bin", entries[0].Name())
	assert.Equal(t, int64(12), ffs.Written())
}

func TestLocalBlobStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalBlobStore_Lock(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	unlock, err := store.Lock(ctx)
	require.NoError(t, err)

	// A second holder has to wait for the first one.
	var (
		wg       sync.WaitGroup
		acquired time.Time
	)
	released := time.Now().Add(50 * time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		unlock2, err := NewLocalStore(store.Root()).Lock(ctx)
		if assert.NoError(t, err) {
			acquired = time.Now()
			_ = unlock2()
		}
	}()

	time.Sleep(time.Until(released))
	require.NoError(t, unlock())
	wg.Wait()
	assert.False(t, acquired.Before(released))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalBlobStore_LockContextCanceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	unlock, err := store.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = NewLocalStore(store.Root()).Lock(ctx)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w, err := store.Create(ctx, "a/1")
	require.NoError(t, err)
	_, _ = w.Write([]byte("abc"))
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "a/2", []byte("defg")))
	require.NoError(t, store.Put(ctx, "b", nil))

	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, names)

	blob, err := store.Open(ctx, "a/2")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "defg", string(data))

	buf := make([]byte, 2)
	n, err := ReaderAt(ctx, blob).ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ef", string(buf))

	require.NoError(t, store.Delete(ctx, "a/2"))
	_, err = store.Open(ctx, "a/2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	stores := map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "partial.bin")
			require.NoError(t, err)
			_, err = w.Write([]byte("half a stream"))
			require.NoError(t, err)

			require.NoError(t, Discard(w))
			require.NoError(t, Discard(w))

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
			_, err = store.Open(ctx, "partial.bin")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
