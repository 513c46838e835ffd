package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/model"
)

// maxLineSize bounds one JSONL document.
const maxLineSize = 16 << 20

type buildOptions struct {
	input       string
	out         string
	pageSize    int
	compression string
}

// document is one line of build input.
type document struct {
	ID     model.DocID         `json:"id"`
	Terms  []model.TermIndex   `json:"terms"`
	Values []model.ImpactValue `json:"values"`
}

func newBuildCmd(a *app) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from JSON lines",
		Long: `Build an index from a JSON lines file with one document per line:

  {"id": 7, "terms": [1, 9], "values": [4.0, 0.5]}

Use --input - to read from stdin. --out may be a directory, s3://bucket/prefix
or minio://bucket/prefix.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("page-size") {
				a.cfg.Index.PageSize = opts.pageSize
			}
			if cmd.Flags().Changed("compression") {
				a.cfg.Index.Compression = opts.compression
			}
			return runBuild(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSON lines input file, or - for stdin")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Index location")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", sparsego.DefaultPageSize, "Postings per page")
	cmd.Flags().StringVar(&opts.compression, "compression", "none", "Header codec: none, lz4, zstd")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, a *app, opts *buildOptions) error {
	loc, err := parseLocation(opts.out)
	if err != nil {
		return err
	}
	var target sparsego.Option
	if loc.scheme == "" {
		target = sparsego.WithDir(loc.path)
	} else {
		store, err := a.openStore(ctx, loc)
		if err != nil {
			return err
		}
		target = sparsego.WithStore(store)
	}

	idxOpts, err := a.indexOptions(target)
	if err != nil {
		return err
	}
	indexer, err := sparsego.New(idxOpts...)
	if err != nil {
		return err
	}

	in, closeInput, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	defer closeInput()

	n, err := readDocuments(ctx, in, indexer)
	if err != nil {
		return err
	}

	idx, err := indexer.Build(ctx, false)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	defer func() { _ = idx.Close() }()

	stats := idx.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d documents, %d terms, %d postings in %d pages\n",
		loc, n, stats.NumTerms, stats.NumPostings, stats.NumPages)
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func readDocuments(ctx context.Context, r io.Reader, indexer *sparsego.Indexer) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var n, line int
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := indexer.Add(ctx, doc.ID, doc.Terms, doc.Values); err != nil {
			return n, fmt.Errorf("line %d: document %d: %w", line, doc.ID, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read input: %w", err)
	}
	return n, nil
}
