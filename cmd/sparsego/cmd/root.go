// Package cmd implements the sparsego command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/internal/config"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *sparsego.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "sparsego",
		Short: "Build and query sparse impact indexes",
		Long: `sparsego builds impact-ordered inverted indexes over sparse vectors
and answers weighted top-k queries with block-max WAND or MaxScore.

Indexes live in a directory, an S3 prefix (s3://bucket/prefix) or a
MinIO prefix (minio://bucket/prefix).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newPostingsCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(w io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, err := parseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		a.logger = sparsego.NewLogger(slog.NewJSONHandler(w, opts))
	} else {
		a.logger = sparsego.NewLogger(slog.NewTextHandler(w, opts))
	}
	a.cfg = cfg
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// indexOptions translates the loaded configuration into library options.
func (a *app) indexOptions(extra ...sparsego.Option) ([]sparsego.Option, error) {
	codec, err := sparsego.ParseCompression(a.cfg.Index.Compression)
	if err != nil {
		return nil, err
	}
	opts := []sparsego.Option{
		sparsego.WithLogger(a.logger),
		sparsego.WithPageSize(a.cfg.Index.PageSize),
		sparsego.WithHeaderCompression(codec),
		sparsego.WithVerifyChecksum(a.cfg.Index.VerifyChecksum),
		sparsego.WithBlockCacheSize(a.cfg.Index.BlockCacheSize),
		sparsego.WithMemoryLimit(a.cfg.Index.MemoryLimit),
		sparsego.WithIOLimit(a.cfg.Index.IOLimit),
	}
	if n := a.cfg.Search.MaxConcurrentQueries; n > 0 {
		opts = append(opts, sparsego.WithMaxConcurrentSearches(n))
	}
	return append(opts, extra...), nil
}
