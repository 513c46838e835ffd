package cmd

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/blobstore"
	minioblob "github.com/hupe1980/sparsego/blobstore/minio"
	s3blob "github.com/hupe1980/sparsego/blobstore/s3"
)

// location is a parsed --index value.
type location struct {
	scheme string // "", "s3" or "minio"
	bucket string
	prefix string
	path   string
}

func parseLocation(s string) (location, error) {
	if s == "" {
		return location{}, fmt.Errorf("index location is required")
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return location{path: s}, nil
	}
	switch scheme {
	case "s3", "minio":
	default:
		return location{}, fmt.Errorf("unsupported index location scheme %q", scheme)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return location{}, fmt.Errorf("index location %q has no bucket", s)
	}
	return location{scheme: scheme, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (l location) String() string {
	if l.scheme == "" {
		return l.path
	}
	return l.scheme + "://" + l.bucket + "/" + l.prefix
}

// openStore returns the blob store behind an index location.
func (a *app) openStore(ctx context.Context, loc location) (blobstore.BlobStore, error) {
	switch loc.scheme {
	case "s3":
		var fns []func(*awsconfig.LoadOptions) error
		if region := a.cfg.Storage.S3.Region; region != "" {
			fns = append(fns, awsconfig.WithRegion(region))
		}
		return s3blob.New(ctx, loc.bucket, loc.prefix, fns...)
	case "minio":
		mc := a.cfg.Storage.MinIO
		client, err := minio.New(mc.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
			Secure: mc.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, loc.bucket, loc.prefix), nil
	default:
		return blobstore.NewLocalStore(loc.path), nil
	}
}

// openIndex loads the index at raw, which may be a directory or a remote
// prefix.
func (a *app) openIndex(ctx context.Context, raw string, inMemory bool, extra ...sparsego.Option) (*sparsego.Index, error) {
	loc, err := parseLocation(raw)
	if err != nil {
		return nil, err
	}
	opts, err := a.indexOptions(extra...)
	if err != nil {
		return nil, err
	}
	if loc.scheme == "" {
		return sparsego.Load(ctx, loc.path, inMemory, opts...)
	}
	store, err := a.openStore(ctx, loc)
	if err != nil {
		return nil, err
	}
	return sparsego.Open(ctx, store, inMemory, opts...)
}
