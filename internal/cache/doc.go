// Package cache provides the block cache placed in front of remote blob
// stores.
//
// Posting streams opened from S3 or MinIO are read in fixed-size blocks;
// cursors touching the same page range of a hot term hit the cache instead
// of issuing another ranged GET. The LRU is bounded by bytes, and cached
// bytes are optionally accounted against a resource.Controller.
package cache
