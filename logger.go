package sparsego

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with sparsego-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithIndex adds an index location field to the logger.
func (l *Logger) WithIndex(location string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", location),
	}
}

// LogAdd logs an Add operation.
func (l *Logger) LogAdd(ctx context.Context, doc uint32, terms int, err error) {
	if err != nil {
		l.WarnContext(ctx, "add rejected",
			"doc", doc,
			"terms", terms,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"doc", doc,
			"terms", terms,
		)
	}
}

// LogBuild logs a Build operation.
func (l *Logger) LogBuild(ctx context.Context, stats Stats, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"docs", stats.NumDocs,
			"terms", stats.NumTerms,
			"postings", stats.NumPostings,
			"pages", stats.NumPages,
			"in_memory", stats.InMemory,
			"duration", duration,
		)
	}
}

// LogLoad logs a Load or Open operation.
func (l *Logger) LogLoad(ctx context.Context, location string, inMemory bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"location", location,
			"in_memory", inMemory,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index loaded",
			"location", location,
			"in_memory", inMemory,
		)
	}
}

// LogSave logs a Save operation.
func (l *Logger) LogSave(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index saved")
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, algorithm string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"algorithm", algorithm,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"algorithm", algorithm,
			"k", k,
			"results", resultsFound,
		)
	}
}
