package index

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is matched by every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("terms and values differ in length")
	// ErrAlreadyBuilt is returned by Add and Build after a successful Build.
	ErrAlreadyBuilt = errors.New("index already built")
	// ErrDuplicateDocument is returned when a doc id is added twice.
	ErrDuplicateDocument = errors.New("duplicate document")
	// ErrDuplicateTerm is returned when a document lists the same term twice.
	ErrDuplicateTerm = errors.New("duplicate term in document")
	// ErrInvalidValue is returned for negative, NaN or infinite impacts.
	ErrInvalidValue = errors.New("invalid impact value")
	// ErrClosed is returned when using a closed index.
	ErrClosed = errors.New("index closed")
	// ErrIO is returned when index streams cannot be read or written.
	ErrIO = errors.New("index i/o error")
)

// ShapeMismatchError reports an Add whose terms and values have different lengths.
type ShapeMismatchError struct {
	Terms  int
	Values int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %d terms, %d values", ErrShapeMismatch, e.Terms, e.Values)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// ErrChecksumMismatch is wrapped in ErrIO when a stream fails verification.
var ErrChecksumMismatch = errors.New("stream checksum mismatch")
