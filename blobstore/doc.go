// Package blobstore is the storage layer under persisted sparsego indexes.
//
// An index is three blobs (header.spx, docids.bin, values.bin). Stores hand
// them out as [Blob] values that support positioned and ranged reads, and
// accept new ones through [WritableBlob] streams that only become visible
// on Close.
//
// # Implementations
//
//   - [LocalStore]: a directory. Reads are memory mapped ([Mappable]),
//     writes go through a temporary file and a rename, and [Locker] takes a
//     cross-process flock.
//   - [MemoryStore]: process memory, for tests and short-lived indexes.
//   - [CachingStore]: a block cache in front of any other store.
//   - s3.Store and minio.Store in the subpackages.
//
// Remote stores pay one request per read. Wrap them in a CachingStore so
// that hot posting pages are fetched once:
//
//	bc := cache.NewLRUBlockCache(64<<20, nil)
//	store := blobstore.NewCachingStore(remote, bc, blobstore.DefaultCacheBlockSize)
package blobstore
