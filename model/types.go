package model

import (
	"fmt"
	"math"
)

// DocID identifies a document. It is supplied by the caller and unique
// within one index.
type DocID uint32

// TermIndex identifies a vocabulary dimension of the sparse vectors.
type TermIndex uint32

// ImpactValue is the precomputed contribution of a term to a document.
// Valid impacts are finite and non-negative.
type ImpactValue float32

// Valid reports whether v is an acceptable impact or query weight.
func (v ImpactValue) Valid() bool {
	f := float64(v)
	return f >= 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// TermImpact is one posting record: a document and its impact for a term.
// Posting lists are ordered by ascending DocID.
type TermImpact struct {
	DocID DocID
	Value ImpactValue
}

// String returns a string representation of the TermImpact.
func (t TermImpact) String() string {
	return fmt.Sprintf("(%d:%g)", t.DocID, t.Value)
}

// ScoredDocument is a search result.
type ScoredDocument struct {
	DocID DocID
	Score float32
}

// String returns a string representation of the ScoredDocument.
func (s ScoredDocument) String() string {
	return fmt.Sprintf("Doc(%d, %g)", s.DocID, s.Score)
}

// Query maps term indexes to non-negative query weights.
type Query map[TermIndex]ImpactValue

// SparseVector is a document or query in parallel-slice form.
type SparseVector struct {
	Terms  []TermIndex
	Values []ImpactValue
}

// Len returns the number of non-zero dimensions.
func (v SparseVector) Len() int {
	return len(v.Terms)
}

// Query converts the vector into a Query. Later duplicates win.
func (v SparseVector) Query() Query {
	q := make(Query, len(v.Terms))
	for i, t := range v.Terms {
		if i < len(v.Values) {
			q[t] = v.Values[i]
		}
	}
	return q
}
