package cache

import "context"

// CacheKind is used to separate key spaces.
type CacheKind uint8

const (
	CacheKindUnknown CacheKind = iota
	CacheKindBlob              // generic blob store blocks
	CacheKindHeader            // decoded index headers
)

// CacheKey identifies an immutable block. Index blobs are never rewritten in
// place, so (Path, Offset) is stable for the lifetime of a store.
type CacheKey struct {
	Kind CacheKind
	// Path identifies the source blob (e.g. "shard-0/docids.bin").
	Path string
	// Offset is a logical block identifier (byte offset of the block start).
	Offset uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b; callers must treat it as immutable.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources.
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
