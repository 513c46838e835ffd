package query

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/sparsego/model"
)

// Algorithm selects a top-k retrieval strategy.
type Algorithm int

const (
	// MaxScore partitions terms into essential and non-essential sets.
	MaxScore Algorithm = iota
	// Wand pivots on cumulative upper bounds and skips whole pages.
	Wand
)

// String returns the lower-case algorithm name.
func (a Algorithm) String() string {
	switch a {
	case MaxScore:
		return "maxscore"
	case Wand:
		return "wand"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses an algorithm name, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maxscore", "max-score", "max_score":
		return MaxScore, nil
	case "wand", "bmw", "block-max-wand":
		return Wand, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Strategy is a top-k retrieval algorithm over opened scorers.
//
// Implementations must visit candidates in ascending doc id order and offer
// every fully scored document to the collector; the collector alone decides
// admission, which keeps all strategies observably equivalent.
type Strategy interface {
	Algorithm() Algorithm
	Search(scorers []*Scorer, top *TopK, filter *roaring.Bitmap)
}

var (
	registryMu sync.RWMutex
	registry   = map[Algorithm]Strategy{}
)

// Register installs s, replacing any strategy for the same algorithm.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Algorithm()] = s
}

// Lookup returns the strategy registered for a.
func Lookup(a Algorithm) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[a]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, a)
	}
	return s, nil
}

func init() {
	Register(wand{})
	Register(maxScore{})
}

// allowed reports whether doc passes the optional filter.
func allowed(filter *roaring.Bitmap, doc model.DocID) bool {
	return filter == nil || filter.Contains(uint32(doc))
}
