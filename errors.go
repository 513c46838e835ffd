package sparsego

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sparsego/internal/index"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/internal/query"
	"github.com/hupe1980/sparsego/internal/resource"
)

var (
	// ErrNotBuilt is returned when searching an Indexer before Build.
	ErrNotBuilt = errors.New("index not built")

	// ErrShapeMismatch is returned by Add when terms and values differ in
	// length. The concrete error is a *ShapeMismatchError.
	ErrShapeMismatch = index.ErrShapeMismatch
	// ErrAlreadyBuilt is returned by Add and Build after a successful Build.
	ErrAlreadyBuilt = index.ErrAlreadyBuilt
	// ErrDuplicateDocument is returned when a doc id is added twice.
	ErrDuplicateDocument = index.ErrDuplicateDocument
	// ErrDuplicateTerm is returned when a document lists a term twice.
	ErrDuplicateTerm = index.ErrDuplicateTerm
	// ErrInvalidValue is returned for negative, NaN or infinite impacts.
	ErrInvalidValue = index.ErrInvalidValue
	// ErrInvalidPageSize is returned for page sizes outside [1, 65536].
	ErrInvalidPageSize = postings.ErrInvalidPageSize

	// ErrCursorNotPositioned is returned by Cursor.Current before the first
	// Next or AdvanceTo.
	ErrCursorNotPositioned = postings.ErrCursorNotPositioned
	// ErrCorruptHeader is returned when a persisted header fails validation.
	ErrCorruptHeader = postings.ErrCorruptHeader
	// ErrIO is returned when posting streams cannot be read or written.
	ErrIO = index.ErrIO
	// ErrChecksumMismatch accompanies ErrIO when stream verification fails.
	ErrChecksumMismatch = index.ErrChecksumMismatch
	// ErrClosed is returned when using a closed Index.
	ErrClosed = index.ErrClosed

	// ErrInvalidQuery is returned for invalid query weights or a negative k.
	ErrInvalidQuery = query.ErrInvalidQuery
	// ErrUnknownAlgorithm is returned for an unregistered algorithm.
	ErrUnknownAlgorithm = query.ErrUnknownAlgorithm

	// ErrMemoryLimitExceeded is returned when an in-memory index does not fit
	// the configured memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ShapeMismatchError reports an Add whose terms and values have different
// lengths.
type ShapeMismatchError = index.ShapeMismatchError

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Page corruption is only ever observed while reading a stream.
	if errors.Is(err, postings.ErrCorruptPage) && !errors.Is(err, ErrIO) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return err
}
