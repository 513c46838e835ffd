package sparsego

import (
	"log/slog"
	"runtime"
	"strings"

	"github.com/hupe1980/sparsego/blobstore"
	"github.com/hupe1980/sparsego/internal/compress"
	"github.com/hupe1980/sparsego/internal/postings"
	"github.com/hupe1980/sparsego/internal/resource"
)

// DefaultPageSize is the number of postings per page.
const DefaultPageSize = postings.DefaultPageSize

// Compression selects the codec of the persisted term table.
type Compression = compress.Type

// Header codecs.
const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	return compress.Parse(strings.ToLower(s))
}

type options struct {
	pageSize              int
	dir                   string
	store                 blobstore.BlobStore
	tempDir               string
	codec                 compress.Type
	metricsCollector      MetricsCollector
	logger                *Logger
	blockCacheSize        int64
	memoryLimit           int64
	maxConcurrentSearches int64
	ioLimit               int
	verifyChecksum        bool
}

// Option configures Indexer construction and index loading.
type Option func(*options)

// WithPageSize sets the number of postings per page. Smaller pages give
// tighter block bounds at the cost of a larger header.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithDir makes Build(ctx, false) persist the index into dir instead of a
// private temporary directory. The directory outlives the index.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithStore makes Build(ctx, false) persist the index into store.
// It takes precedence over WithDir.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithTempDir sets the parent of private temporary index directories.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithHeaderCompression sets the codec for the persisted term table.
//
// Example:
//
//	indexer, _ := sparsego.New(sparsego.WithHeaderCompression(sparsego.CompressionZSTD))
func WithHeaderCompression(codec Compression) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &sparsego.BasicMetricsCollector{}
//	indexer, _ := sparsego.New(sparsego.WithMetricsCollector(metrics))
//	// ... use indexer ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := sparsego.NewJSONLogger(slog.LevelInfo)
//	indexer, _ := sparsego.New(sparsego.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBlockCacheSize enables an LRU block cache of the given byte capacity
// in front of remote stores opened with Open.
func WithBlockCacheSize(bytes int64) Option {
	return func(o *options) {
		o.blockCacheSize = bytes
	}
}

// WithMemoryLimit caps the bytes held by in-memory posting streams and the
// block cache. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxConcurrentSearches bounds the number of ExecuteAsync searches
// running at once. It defaults to GOMAXPROCS.
func WithMaxConcurrentSearches(n int) Option {
	return func(o *options) {
		o.maxConcurrentSearches = int64(n)
	}
}

// WithIOLimit throttles stream reads to bytesPerSec. 0 means unlimited.
func WithIOLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithVerifyChecksum verifies both posting streams against the header
// checksums when an index is loaded.
func WithVerifyChecksum(verify bool) Option {
	return func(o *options) {
		o.verifyChecksum = verify
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		pageSize:              DefaultPageSize,
		codec:                 compress.None,
		metricsCollector:      NoopMetricsCollector{},
		logger:                NoopLogger(),
		maxConcurrentSearches: int64(runtime.GOMAXPROCS(0)),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) resourceController() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:      o.memoryLimit,
		MaxConcurrentSearches: o.maxConcurrentSearches,
		IOLimitBytesPerSec:    int64(o.ioLimit),
	})
}
