package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

// ErrClosed is returned by accessors of a closed Mapping.
var ErrClosed = errors.New("mmap: mapping is closed")

// AccessPattern is a paging hint passed to the kernel.
type AccessPattern uint8

const (
	AccessNormal AccessPattern = iota
	AccessSequential
	AccessRandom
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	path   string
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path. Empty files get a valid, empty Mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	m := &Mapping{path: path}
	switch size := fi.Size(); {
	case size == 0:
		return m, nil
	case size > math.MaxInt:
		return nil, fmt.Errorf("mmap: %s: file too large (%d bytes)", path, size)
	default:
		m.data, m.unmap, err = osMap(f, int(size))
		if err != nil {
			return nil, fmt.Errorf("mmap: %s: %w", path, err)
		}
		return m, nil
	}
}

// Close unmaps the file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap(m.data)
}

// Bytes returns the mapped file, or nil once the mapping is closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the length of the mapped file.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise passes an access pattern hint for the whole mapping.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("mmap: %s: negative offset %d", m.path, off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
