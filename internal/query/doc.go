// Package query implements top-k retrieval over impact indexes.
//
// Two strategies are registered: block-max WAND and MaxScore. Both score
// candidates in ascending doc id order, sum contributions in ascending term
// order in float64, and feed a shared TopK collector, so they return
// identical rankings for the same input.
//
//	res, err := query.Search(ix, query.Request{
//	    Query:     model.Query{5: 1, 9: 0.5},
//	    K:         10,
//	    Algorithm: query.Wand,
//	})
package query
