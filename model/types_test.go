package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpactValue_Valid(t *testing.T) {
	assert.True(t, ImpactValue(0).Valid())
	assert.True(t, ImpactValue(3.5).Valid())
	assert.False(t, ImpactValue(-1).Valid())
	assert.False(t, ImpactValue(float32(math.NaN())).Valid())
	assert.False(t, ImpactValue(float32(math.Inf(1))).Valid())
}

func TestSparseVector_Query(t *testing.T) {
	v := SparseVector{Terms: []TermIndex{5, 9}, Values: []ImpactValue{1, 2}}
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, Query{5: 1, 9: 2}, v.Query())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "(3:1.5)", TermImpact{DocID: 3, Value: 1.5}.String())
	assert.Equal(t, "Doc(2, 4)", ScoredDocument{DocID: 2, Score: 4}.String())
}
