package postings

import (
	"fmt"
	"io"
)

// Source provides random access to one posting stream.
type Source interface {
	// View returns n bytes starting at off. Implementations either return a
	// slice of memory they own (valid until the source is closed) or fill and
	// return buf, which callers size to at least n.
	View(off uint64, n int, buf []byte) ([]byte, error)
	// Size returns the stream length in bytes.
	Size() uint64
}

// BytesSource serves a stream held entirely in memory.
type BytesSource []byte

// View implements Source without copying.
func (s BytesSource) View(off uint64, n int, _ []byte) ([]byte, error) {
	if n < 0 || off > uint64(len(s)) || uint64(n) > uint64(len(s))-off {
		return nil, fmt.Errorf("%w: [%d, +%d) of %d", ErrOutOfBounds, off, n, len(s))
	}
	return s[off : off+uint64(n) : off+uint64(n)], nil
}

// Size implements Source.
func (s BytesSource) Size() uint64 {
	return uint64(len(s))
}

// ReaderAtSource serves a stream through positioned reads.
type ReaderAtSource struct {
	R   io.ReaderAt
	Len uint64
}

// View implements Source by reading into buf.
func (s ReaderAtSource) View(off uint64, n int, buf []byte) ([]byte, error) {
	if n < 0 || off > s.Len || uint64(n) > s.Len-off {
		return nil, fmt.Errorf("%w: [%d, +%d) of %d", ErrOutOfBounds, off, n, s.Len)
	}
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	m, err := s.R.ReadAt(buf, int64(off))
	if m == n {
		// io.ReaderAt may report io.EOF alongside a full read at the end.
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// Size implements Source.
func (s ReaderAtSource) Size() uint64 {
	return s.Len
}

// Streams bundles the two posting streams of an index.
type Streams struct {
	DocIDs Source
	Values Source
}
