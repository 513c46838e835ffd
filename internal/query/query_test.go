package query

import (
	"cmp"
	"context"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/index"
	"github.com/hupe1980/sparsego/model"
)

var algorithms = []Algorithm{Wand, MaxScore}

type corpus map[model.DocID]model.Query

func buildIndex(t *testing.T, docs corpus, pageSize int) *index.Index {
	t.Helper()
	b, err := index.NewBuilder(pageSize)
	require.NoError(t, err)
	for id, vec := range docs {
		var terms []model.TermIndex
		var values []model.ImpactValue
		for term, v := range vec {
			terms = append(terms, term)
			values = append(values, v)
		}
		require.NoError(t, b.Add(id, terms, values))
	}
	ix, err := b.Build(context.Background(), index.BuildOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

// bruteForce scores every document exhaustively.
func bruteForce(docs corpus, q model.Query, k int, filter *roaring.Bitmap) []model.ScoredDocument {
	terms, _ := Prepare(q)
	var all []candidate
	for id, vec := range docs {
		if filter != nil && !filter.Contains(uint32(id)) {
			continue
		}
		var s float64
		for _, t := range terms {
			if v, ok := vec[t.Index]; ok {
				s += t.Weight * float64(v)
			}
		}
		if s > 0 {
			all = append(all, candidate{doc: id, score: s})
		}
	}
	slices.SortFunc(all, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.doc, b.doc)
	})
	out := []model.ScoredDocument{}
	for _, c := range all[:min(k, len(all))] {
		out = append(out, model.ScoredDocument{DocID: c.doc, Score: float32(c.score)})
	}
	return out
}

func randomCorpus(rng *rand.Rand, numDocs, numTerms int) corpus {
	docs := make(corpus, numDocs)
	for d := 0; d < numDocs; d++ {
		vec := model.Query{}
		for t := 0; t < numTerms; t++ {
			if rng.Intn(4) == 0 {
				vec[model.TermIndex(t)] = model.ImpactValue(float32(rng.Intn(64)) / 8)
			}
		}
		docs[model.DocID(d*3)] = vec
	}
	return docs
}

func TestScenario(t *testing.T) {
	ix := buildIndex(t, corpus{
		1: {5: 2.0},
		2: {5: 1.0, 9: 3.0},
	}, 128)

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			got, err := Search(ix, Request{Query: model.Query{5: 1, 9: 1}, K: 2, Algorithm: alg})
			require.NoError(t, err)
			assert.Equal(t, []model.ScoredDocument{{DocID: 2, Score: 4}, {DocID: 1, Score: 2}}, got)
		})
	}
}

func TestTiesBreakByDocID(t *testing.T) {
	ix := buildIndex(t, corpus{
		9: {1: 1},
		3: {1: 1},
		5: {1: 1},
		7: {2: 2},
	}, 2)

	for _, alg := range algorithms {
		got, err := Search(ix, Request{Query: model.Query{1: 2, 2: 1}, K: 3, Algorithm: alg})
		require.NoError(t, err)
		assert.Equal(t, []model.ScoredDocument{{DocID: 3, Score: 2}, {DocID: 5, Score: 2}, {DocID: 7, Score: 2}}, got, alg.String())
	}
}

func TestAlgorithmsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 5; round++ {
		docs := randomCorpus(rng, 300, 12)
		for _, pageSize := range []int{1, 3, 16} {
			ix := buildIndex(t, docs, pageSize)
			for q := 0; q < 10; q++ {
				query := model.Query{}
				for t := 0; t < 12; t++ {
					if rng.Intn(3) == 0 {
						query[model.TermIndex(t)] = model.ImpactValue(rng.Intn(5))
					}
				}
				for _, k := range []int{1, 5, 20, 400} {
					want := bruteForce(docs, query, k, nil)
					for _, alg := range algorithms {
						got, err := Search(ix, Request{Query: query, K: k, Algorithm: alg})
						require.NoError(t, err)
						require.Equal(t, want, got, "alg=%s page=%d k=%d query=%v", alg, pageSize, k, query)
					}
				}
			}
		}
	}
}

func TestFilter(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	docs := randomCorpus(rng, 200, 6)
	ix := buildIndex(t, docs, 4)

	filter := roaring.New()
	for d := uint32(0); d < 600; d += 9 {
		filter.Add(d)
	}
	query := model.Query{0: 1, 2: 0.5, 4: 2}
	want := bruteForce(docs, query, 10, filter)
	require.NotEmpty(t, want)

	for _, alg := range algorithms {
		got, err := Search(ix, Request{Query: query, K: 10, Algorithm: alg, Filter: filter})
		require.NoError(t, err)
		assert.Equal(t, want, got, alg.String())
		for _, r := range got {
			assert.True(t, filter.Contains(uint32(r.DocID)))
		}
	}
}

func TestSearchEdgeCases(t *testing.T) {
	ix := buildIndex(t, corpus{
		1: {5: 2.0},
		2: {5: 1.0, 9: 3.0},
		3: {7: 0},
	}, 128)

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			got, err := Search(ix, Request{Query: model.Query{5: 1}, K: 0, Algorithm: alg})
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = Search(ix, Request{Query: model.Query{}, K: 10, Algorithm: alg})
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = Search(ix, Request{Query: model.Query{1000: 1}, K: 10, Algorithm: alg})
			require.NoError(t, err)
			assert.Empty(t, got, "unknown terms are skipped")

			got, err = Search(ix, Request{Query: model.Query{5: 1, 1000: 4}, K: 10, Algorithm: alg})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			got, err = Search(ix, Request{Query: model.Query{7: 5}, K: 10, Algorithm: alg})
			require.NoError(t, err)
			assert.Empty(t, got, "zero scores are never returned")

			got, err = Search(ix, Request{Query: model.Query{5: 0, 9: 1}, K: 10, Algorithm: alg})
			require.NoError(t, err)
			assert.Equal(t, []model.ScoredDocument{{DocID: 2, Score: 3}}, got)

			got, err = Search(ix, Request{Query: model.Query{5: 1, 9: 1}, K: 100, Algorithm: alg})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
				_, err = Search(ix, Request{Query: model.Query{5: model.ImpactValue(w)}, K: 10, Algorithm: alg})
				assert.ErrorIs(t, err, ErrInvalidQuery)
			}
			_, err = Search(ix, Request{Query: model.Query{5: 1}, K: -1, Algorithm: alg})
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}

	_, err := Search(ix, Request{Query: model.Query{5: 1}, K: 1, Algorithm: Algorithm(99)})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSearchIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ix := buildIndex(t, randomCorpus(rng, 100, 5), 8)
	req := Request{Query: model.Query{0: 1, 1: 2, 3: 0.5}, K: 7}

	first, err := Search(ix, req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Search(ix, req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchClosedIndex(t *testing.T) {
	ix := buildIndex(t, corpus{1: {5: 2}}, 128)
	require.NoError(t, ix.Close())

	_, err := Search(ix, Request{Query: model.Query{5: 1}, K: 1})
	assert.ErrorIs(t, err, index.ErrClosed)
}

func TestSearchCorruptStream(t *testing.T) {
	ctx := context.Background()
	ix := buildIndex(t, corpus{1: {5: 2}, 4: {5: 1}, 6: {5: 3}}, 2)

	store := blobstore.NewMemoryStore()
	require.NoError(t, ix.Save(ctx, store, compress.None))

	b, err := store.Open(ctx, index.DocIDsBlob)
	require.NoError(t, err)
	data, err := blobstore.ReadAll(ctx, b)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	for i := range data {
		data[i] = 0xFF
	}
	require.NoError(t, store.Put(ctx, index.DocIDsBlob, data))

	loaded, err := index.Open(ctx, store, index.OpenOptions{})
	require.NoError(t, err)
	defer loaded.Close()

	for _, alg := range algorithms {
		got, err := Search(loaded, Request{Query: model.Query{5: 1}, K: 3, Algorithm: alg})
		assert.ErrorIs(t, err, index.ErrIO, alg.String())
		assert.Nil(t, got)
	}
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{"wand": Wand, "WAND": Wand, "maxscore": MaxScore, " MaxScore ": MaxScore} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAlgorithm("bm25")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestTopK(t *testing.T) {
	top := NewTopK(2)
	assert.True(t, math.IsInf(top.Threshold(), -1))

	assert.False(t, top.Offer(1, 0), "zero scores are rejected")
	assert.False(t, top.Offer(2, 1))
	assert.True(t, top.Offer(3, 2))
	assert.Equal(t, 1.0, top.Threshold())

	assert.False(t, top.Offer(4, 1), "equal score loses to the smaller doc id")
	assert.True(t, top.Offer(5, 3))
	assert.Equal(t, 2.0, top.Threshold())

	assert.Equal(t, []model.ScoredDocument{{DocID: 5, Score: 3}, {DocID: 3, Score: 2}}, top.Results())
}
