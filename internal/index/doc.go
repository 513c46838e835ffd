// Package index builds, persists and loads impact indexes.
//
// A Builder accepts documents until Build compiles them into an Index.
// An Index is immutable and reference counted: every cursor pins it, and
// storage (memory accounting, mappings, private temporary directories) is
// released once the owner has closed it and the last cursor is gone.
//
// A persisted index is three blobs in a blobstore.BlobStore:
//
//	header.spx   file header and term table
//	docids.bin   little-endian uint32 doc ids, page after page
//	values.bin   little-endian float32 impacts, aligned with docids.bin
//
// The header is written last and removed first, so readers never pair a
// new header with old streams.
package index
