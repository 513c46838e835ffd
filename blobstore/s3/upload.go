package s3

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/sparsego/internal/hash"
)

// UploadConfig tunes streaming uploads.
type UploadConfig struct {
	// PartSize is the multipart threshold and part size in bytes.
	PartSize int64
	// Concurrency bounds parallel part uploads.
	Concurrency int
	// EnableChecksum attaches CRC32C checksums to uploads.
	EnableChecksum bool
	// LeavePartsOnError skips aborting a failed multipart upload.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns 8 MiB parts, five in flight, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5, EnableChecksum: true}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// computeCRC32C encodes the checksum the way the x-amz-checksum-crc32c
// header wants it: big-endian bytes, base64.
func computeCRC32C(data []byte) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}

var errAborted = errors.New("s3: upload aborted")

// upload pipes writes into a background manager.Uploader call.
type upload struct {
	pw     *io.PipeWriter
	result chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func startUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *upload {
	pr, pw := io.Pipe()
	u := &upload{pw: pw, result: make(chan error, 1)}

	in := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key), Body: pr}
	if checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	go func() {
		_, err := uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		u.result <- err
	}()
	return u
}

func (u *upload) Write(p []byte) (int, error) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return u.pw.Write(p)
}

// Sync is a no-op; nothing is visible before Close.
func (u *upload) Sync() error { return nil }

// Close completes the upload. Repeated calls return the first result.
func (u *upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return u.err
	}
	u.closed = true
	if u.err = u.pw.Close(); u.err == nil {
		u.err = <-u.result
	}
	return u.err
}

// Abort cancels the upload. A started multipart upload is aborted unless
// LeavePartsOnError is set.
func (u *upload) Abort() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	_ = u.pw.CloseWithError(errAborted)
	if err := <-u.result; err != nil && !errors.Is(err, errAborted) {
		return err
	}
	return nil
}
