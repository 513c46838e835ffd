package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/metric"
)

type serveOptions struct {
	index    string
	addr     string
	inMemory bool
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an index over HTTP",
		Long: `Serve an index over HTTP.

Endpoints:
  GET /search?q=5:1.0,9:0.5&k=10&algorithm=wand
  GET /stats
  GET /metrics
  GET /health/live`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("in-memory") {
				opts.inMemory = a.cfg.Index.InMemory
			}
			return runServe(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index location")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "Load posting streams into memory")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runServe(ctx context.Context, a *app, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	idx, err := a.openIndex(ctx, opts.index, opts.inMemory,
		sparsego.WithMetricsCollector(metric.NewPrometheusCollector(reg)))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	algo, err := sparsego.ParseAlgorithm(a.cfg.Search.Algorithm)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         opts.addr,
		Handler:      newHandler(idx, reg, a.logger, a.cfg.Search.TopK, algo),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", "error", err)
		}
	}()

	a.logger.Info("search service listening", "addr", server.Addr, "index", opts.index)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info("search service stopped")
	return nil
}

type handler struct {
	idx       *sparsego.Index
	logger    *sparsego.Logger
	topK      int
	algorithm sparsego.Algorithm
}

type searchResponse struct {
	Algorithm string      `json:"algorithm"`
	K         int         `json:"k"`
	Results   []searchHit `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newHandler(idx *sparsego.Index, reg *prometheus.Registry, logger *sparsego.Logger, topK int, algo sparsego.Algorithm) http.Handler {
	h := &handler{idx: idx, logger: logger, topK: topK, algorithm: algo}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", h.search)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q, err := parseQuery(params.Get("q"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	k := h.topK
	if v := params.Get("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid k %q", v)})
			return
		}
	}
	algo := h.algorithm
	if v := params.Get("algorithm"); v != "" {
		if algo, err = sparsego.ParseAlgorithm(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	// Searches run to completion; a client that goes away only stops waiting.
	results, err := h.idx.Search(q).TopK(k).Algorithm(algo).ExecuteAsync(r.Context()).Wait(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, sparsego.ErrInvalidQuery):
			status = http.StatusBadRequest
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		default:
			h.logger.ErrorContext(r.Context(), "search failed", "error", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{Doc: res.DocID, Score: res.Score}
	}
	writeJSON(w, http.StatusOK, searchResponse{Algorithm: algo.String(), K: k, Results: hits})
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.idx.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
