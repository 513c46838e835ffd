package query

import "errors"

var (
	// ErrInvalidQuery is returned for negative, NaN or infinite query
	// weights and for a negative k.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownAlgorithm is returned when no strategy is registered for an
	// algorithm.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)
