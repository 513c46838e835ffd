// Package sparsego is an embedded impact index for learned sparse retrieval.
//
// Documents are sparse vectors of (term, impact) pairs. An Indexer collects
// them, Build turns them into an immutable Index of block-paginated posting
// lists, and searches rank documents by the dot product with a weighted
// query using block-max WAND or MaxScore.
//
// # Quick Start
//
//	ctx := context.Background()
//	indexer, _ := sparsego.New()
//	_ = indexer.Add(ctx, 1, []model.TermIndex{5}, []model.ImpactValue{2})
//	_ = indexer.Add(ctx, 2, []model.TermIndex{5, 9}, []model.ImpactValue{1, 3})
//
//	idx, _ := indexer.Build(ctx, true) // in memory
//	defer idx.Close()
//
//	results, _ := idx.Search(model.Query{5: 1, 9: 1}).TopK(2).Execute(ctx)
//	// [Doc(2, 4) Doc(1, 2)]
//
// # Persistence
//
// Build(ctx, false) writes the index into WithDir, WithStore, or a private
// temporary directory and serves it through memory mappings:
//
//	indexer, _ := sparsego.New(sparsego.WithDir("./news"))
//	idx, _ := indexer.Build(ctx, false)
//
//	idx, _ = sparsego.Load(ctx, "./news", false)
//
// Any blobstore.BlobStore works, including S3 and MinIO:
//
//	store, _ := s3.New(ctx, "my-bucket", "indexes/news")
//	idx, _ := sparsego.Open(ctx, store, false, sparsego.WithBlockCacheSize(256<<20))
//
// # Asynchronous Search
//
//	f := idx.Search(q).TopK(10).ExecuteAsync(ctx)
//	results, err := f.Wait(ctx)
//
// Asynchronous searches return exactly what Execute returns. Searches are
// never canceled once started.
package sparsego
