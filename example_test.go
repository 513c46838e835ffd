package sparsego_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/model"
)

// Example demonstrates building an in-memory index and searching it.
func Example() {
	ctx := context.Background()

	indexer, err := sparsego.New()
	if err != nil {
		log.Fatal(err)
	}
	_ = indexer.Add(ctx, 1, []model.TermIndex{5}, []model.ImpactValue{2})
	_ = indexer.Add(ctx, 2, []model.TermIndex{5, 9}, []model.ImpactValue{1, 3})

	idx, err := indexer.Build(ctx, true)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	results, err := idx.Search(model.Query{5: 1, 9: 1}).TopK(2).Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(results)
	// Output: [Doc(2, 4) Doc(1, 2)]
}

// Example_async demonstrates a search running on its own goroutine.
func Example_async() {
	ctx := context.Background()

	indexer, _ := sparsego.New()
	_ = indexer.Add(ctx, 7, []model.TermIndex{1, 2}, []model.ImpactValue{0.5, 1.5})

	idx, _ := indexer.Build(ctx, true)
	defer idx.Close()

	f := idx.Search(model.Query{2: 2}).Algorithm(sparsego.Wand).ExecuteAsync(ctx)
	results, err := f.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(results)
	// Output: [Doc(7, 3)]
}
