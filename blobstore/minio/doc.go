// Package minio provides a BlobStore backed by MinIO or any S3-compatible
// object store (Ceph, SeaweedFS, Garage) through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "indexes", "news/")
//	idx, err := sparsego.Open(ctx, store, false)
//
// Reads are ranged GETs; wrap the store in blobstore.NewCachingStore to keep
// hot posting pages in memory.
package minio
