package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sparsego/model"
)

type postingsOptions struct {
	index string
	term  uint32
	limit int
}

func newPostingsCmd(a *app) *cobra.Command {
	opts := &postingsOptions{}

	cmd := &cobra.Command{
		Use:   "postings",
		Short: "Print the posting list of a term",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPostings(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index location")
	cmd.Flags().Uint32VarP(&opts.term, "term", "t", 0, "Term index")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Stop after this many postings (0 = all)")
	_ = cmd.MarkFlagRequired("index")
	_ = cmd.MarkFlagRequired("term")

	return cmd
}

func runPostings(ctx context.Context, cmd *cobra.Command, a *app, opts *postingsOptions) error {
	idx, err := a.openIndex(ctx, opts.index, false)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	out := cmd.OutOrStdout()
	n := 0
	for rec, err := range idx.Postings(model.TermIndex(opts.term)) {
		if err != nil {
			return fmt.Errorf("term %d: %w", opts.term, err)
		}
		fmt.Fprintf(out, "%d\t%g\n", rec.DocID, rec.Value)
		n++
		if opts.limit > 0 && n >= opts.limit {
			break
		}
	}
	return nil
}
