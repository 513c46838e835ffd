package postings

import "errors"

var (
	// ErrCorruptHeader is returned when an index header is malformed or violates
	// a page invariant.
	ErrCorruptHeader = errors.New("postings: corrupt header")
	// ErrCorruptPage is returned when a decoded page contradicts its metadata.
	ErrCorruptPage = errors.New("postings: corrupt page")
	// ErrCursorNotPositioned is returned by Current before the first advance
	// or after exhaustion.
	ErrCursorNotPositioned = errors.New("postings: cursor not positioned")
	// ErrUnsortedPostings is returned when a writer receives doc ids out of order.
	ErrUnsortedPostings = errors.New("postings: doc ids not strictly increasing")
	// ErrTermOrder is returned when terms are written out of ascending order.
	ErrTermOrder = errors.New("postings: terms not strictly increasing")
	// ErrInvalidPageSize is returned for page sizes outside [1, MaxPageSize].
	ErrInvalidPageSize = errors.New("postings: invalid page size")
	// ErrOutOfBounds is returned when a source is asked for bytes past its end.
	ErrOutOfBounds = errors.New("postings: read out of bounds")
)
