package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type infoOptions struct {
	index  string
	format string
}

func newInfoCmd(a *app) *cobra.Command {
	opts := &infoOptions{}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index location")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runInfo(ctx context.Context, cmd *cobra.Command, a *app, opts *infoOptions) error {
	idx, err := a.openIndex(ctx, opts.index, false)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	stats := idx.Stats()
	out := cmd.OutOrStdout()

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "text":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Location:\t%s\n", stats.Location)
		fmt.Fprintf(tw, "Documents:\t%d\n", stats.NumDocs)
		fmt.Fprintf(tw, "Terms:\t%d\n", stats.NumTerms)
		fmt.Fprintf(tw, "Postings:\t%d\n", stats.NumPostings)
		fmt.Fprintf(tw, "Pages:\t%d\n", stats.NumPages)
		fmt.Fprintf(tw, "Page size:\t%d\n", stats.PageSize)
		fmt.Fprintf(tw, "Doc id stream:\t%d bytes\n", stats.DocIDsBytes)
		fmt.Fprintf(tw, "Value stream:\t%d bytes\n", stats.ValuesBytes)
		return tw.Flush()
	default:
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}
}
