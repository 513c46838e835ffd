// Package mmap provides read-only memory-mapped file access.
//
// Posting streams of an on-disk index are mapped once when the index is
// opened with in-memory loading disabled. Cursors then decode pages directly
// from the mapped bytes without copying them through kernel buffers.
//
//	m, err := mmap.Open("docids.bin")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)
//	stream := m.Bytes()
//
// Unix platforms use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and treats Advise as a no-op.
//
// A Mapping is safe for concurrent readers. Close is idempotent, but callers
// must make sure nothing touches the slice returned by Bytes after Close
// returns.
package mmap
