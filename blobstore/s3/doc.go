// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
//	store, err := s3.New(ctx, "my-bucket", "indexes/news/",
//	    config.WithRegion("us-east-1"),
//	)
//
//	idx, err := sparsego.Open(ctx, store, false)
//
// Reads are ranged GETs, streaming writes use the SDK upload manager
// (multipart above UploadConfig.PartSize) and small blobs are uploaded with a
// CRC32C checksum.
package s3
