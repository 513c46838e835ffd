package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/sparsego/blobstore"
)

var errAborted = errors.New("minio: upload aborted")

// Store keeps index blobs as objects under a key prefix of one bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a Store for bucket. Every blob name is joined onto
// rootPrefix, so several indexes can share a bucket.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *Store) key(name string) string { return path.Join(s.prefix, name) }

func (s *Store) relative(key string) string {
	return strings.TrimLeft(strings.TrimPrefix(key, s.prefix), "/")
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object and returns a handle serving ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, name)
	case err != nil:
		return nil, err
	}
	return &object{store: s, key: key, size: info.Size}, nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	opts := minio.PutObjectOptions{SendContentMd5: true}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), opts)
	return err
}

// Create starts a streaming upload of unknown length. The object appears
// once the returned writer is closed.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	u := &upload{pw: pw, result: make(chan error, 1)}
	go func(key string) {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		u.result <- err
	}(s.key(name))
	return u, nil
}

// Delete removes the object. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if isNotFound(err) {
		return nil
	}
	return err
}

// List returns the sorted blob names under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.key(prefix), Recursive: true}
	var names []string
	for info := range s.client.ListObjects(ctx, s.bucket, opts) {
		if info.Err != nil {
			return nil, info.Err
		}
		if name := s.relative(info.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

type object struct {
	store *Store
	key   string
	size  int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// rangeGet fetches [off, off+length) clipped to the object size.
func (o *object) rangeGet(ctx context.Context, off, length int64) (io.ReadCloser, int64, error) {
	if off < 0 || off >= o.size {
		return nil, 0, io.EOF
	}
	last := min(off+length, o.size) - 1

	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, last); err != nil {
		return nil, 0, err
	}
	rc, err := o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
	if err != nil {
		return nil, 0, err
	}
	return rc, last - off + 1, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rc, n, err := o.rangeGet(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	got, err := io.ReadFull(rc, p[:n])
	if err == nil && got < len(p) {
		err = io.EOF
	}
	return got, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	rc, _, err := o.rangeGet(ctx, off, length)
	return rc, err
}

// upload feeds a background PutObject through a pipe.
type upload struct {
	pw     *io.PipeWriter
	result chan error
	closed bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.closed {
		return 0, io.ErrClosedPipe
	}
	return u.pw.Write(p)
}

func (u *upload) Sync() error { return nil }

func (u *upload) Close() error {
	if u.closed {
		return io.ErrClosedPipe
	}
	u.closed = true
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.result
}

// Abort cancels the upload; the object is never created.
func (u *upload) Abort() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.pw.CloseWithError(errAborted)
}
