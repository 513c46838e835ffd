package sparsego_test

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/model"
)

const (
	benchDocs  = 20_000
	benchVocab = 30_000
	benchTerms = 40
)

// benchCorpus draws term ids from a Zipf distribution so a few terms have
// long posting lists, as in learned sparse encoders.
func benchCorpus(seed int64) []model.SparseVector {
	rng := rand.New(rand.NewSource(seed))
	zipf := rand.NewZipf(rng, 1.1, 4, benchVocab-1)

	docs := make([]model.SparseVector, benchDocs)
	for i := range docs {
		seen := make(map[model.TermIndex]struct{}, benchTerms)
		var v model.SparseVector
		for len(v.Terms) < benchTerms {
			t := model.TermIndex(zipf.Uint64())
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			v.Terms = append(v.Terms, t)
			v.Values = append(v.Values, model.ImpactValue(rng.Float32()*4))
		}
		docs[i] = v
	}
	return docs
}

func benchIndex(b *testing.B, inMemory bool) *sparsego.Index {
	b.Helper()
	ctx := context.Background()
	indexer, err := sparsego.New(sparsego.WithTempDir(b.TempDir()))
	if err != nil {
		b.Fatal(err)
	}
	for i, v := range benchCorpus(1) {
		if err := indexer.AddVector(ctx, model.DocID(i), v); err != nil {
			b.Fatal(err)
		}
	}
	idx, err := indexer.Build(ctx, inMemory)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })
	return idx
}

func benchQueries(n int) []model.Query {
	corpus := benchCorpus(2)
	queries := make([]model.Query, n)
	for i := range queries {
		v := corpus[i]
		v.Terms, v.Values = v.Terms[:12], v.Values[:12]
		queries[i] = v.Query()
	}
	return queries
}

// BenchmarkSearch measures top-k latency per algorithm and stream mode.
func BenchmarkSearch(b *testing.B) {
	queries := benchQueries(100)
	ctx := context.Background()

	for _, inMemory := range []bool{true, false} {
		idx := benchIndex(b, inMemory)
		for _, algo := range []sparsego.Algorithm{sparsego.MaxScore, sparsego.Wand} {
			for _, k := range []int{10, 100} {
				name := "mem=" + strconv.FormatBool(inMemory) + "/algo=" + algo.String() + "/k=" + strconv.Itoa(k)
				b.Run(name, func(b *testing.B) {
					b.ReportAllocs()
					b.ResetTimer()

					for i := 0; i < b.N; i++ {
						q := queries[i%len(queries)]
						if _, err := idx.Search(q).TopK(k).Algorithm(algo).Execute(ctx); err != nil {
							b.Fatal(err)
						}
					}

					b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "qps")
				})
			}
		}
	}
}

// BenchmarkBuild measures indexing throughput.
func BenchmarkBuild(b *testing.B) {
	corpus := benchCorpus(1)
	ctx := context.Background()

	for _, inMemory := range []bool{true, false} {
		b.Run("mem="+strconv.FormatBool(inMemory), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				indexer, err := sparsego.New(sparsego.WithTempDir(b.TempDir()))
				if err != nil {
					b.Fatal(err)
				}
				for id, v := range corpus {
					if err := indexer.AddVector(ctx, model.DocID(id), v); err != nil {
						b.Fatal(err)
					}
				}
				idx, err := indexer.Build(ctx, inMemory)
				if err != nil {
					b.Fatal(err)
				}
				_ = idx.Close()
			}
			b.ReportMetric(float64(b.N*len(corpus))/b.Elapsed().Seconds(), "docs/sec")
		})
	}
}
