package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/model"
)

type searchOptions struct {
	index     string
	query     string
	k         int
	algorithm string
	format    string
	inMemory  bool
}

// searchHit is the JSON form of a result.
type searchHit struct {
	Doc   model.DocID `json:"doc"`
	Score float32     `json:"score"`
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a top-k query against an index",
		Long: `Run a weighted top-k query. The query is a comma-separated list of
term:weight pairs.

Examples:
  sparsego search --index ./idx --query "5:1.0,9:1.0"
  sparsego search --index ./idx --query "5:1,9:0.5" -k 3 --algorithm wand --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("top-k") {
				opts.k = a.cfg.Search.TopK
			}
			if !cmd.Flags().Changed("algorithm") {
				opts.algorithm = a.cfg.Search.Algorithm
			}
			if !cmd.Flags().Changed("in-memory") {
				opts.inMemory = a.cfg.Index.InMemory
			}
			return runSearch(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index location")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Query as term:weight pairs")
	cmd.Flags().IntVarP(&opts.k, "top-k", "k", sparsego.DefaultTopK, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", "maxscore", "Algorithm: maxscore, wand")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "Load posting streams into memory")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, opts *searchOptions) error {
	switch opts.format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}
	q, err := parseQuery(opts.query)
	if err != nil {
		return err
	}
	algo, err := sparsego.ParseAlgorithm(opts.algorithm)
	if err != nil {
		return err
	}

	idx, err := a.openIndex(ctx, opts.index, opts.inMemory)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	results, err := idx.Search(q).TopK(opts.k).Algorithm(algo).Execute(ctx)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return writeResults(cmd.OutOrStdout(), opts.format, results)
}

// parseQuery parses "5:1.0,9:0.5". Repeated terms keep the last weight.
func parseQuery(s string) (model.Query, error) {
	q := make(model.Query)
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		term, weight, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid query term %q: want term:weight", part)
		}
		t, err := strconv.ParseUint(strings.TrimSpace(term), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid term %q: %w", term, err)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", weight, err)
		}
		q[model.TermIndex(t)] = model.ImpactValue(w)
	}
	return q, nil
}

func writeResults(w io.Writer, format string, results []model.ScoredDocument) error {
	if format == "json" {
		hits := make([]searchHit, len(results))
		for i, r := range results {
			hits[i] = searchHit{Doc: r.DocID, Score: r.Score}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. doc=%d score=%g\n", i+1, r.DocID, r.Score)
	}
	return nil
}
