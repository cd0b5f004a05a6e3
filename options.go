package dreamweaving

import (
	"log/slog"
	"time"

	"github.com/randysalars/dreamweaving/internal/knowledge"
	"github.com/randysalars/dreamweaving/internal/service/metricsync"
	"github.com/randysalars/dreamweaving/internal/store"
)

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	dataDir     string
	summaryPath string
	logger      *slog.Logger
	version     string
	backend     store.Backend
	retriever   knowledge.Retriever
	fetcher     metricsync.Fetcher
	clock       func() time.Time
}

// WithDataDir overrides the collection directory for the file backend
// (DREAMWEAVE_DATA_DIR env var).
func WithDataDir(dir string) Option {
	return func(o *resolvedOptions) { o.dataDir = dir }
}

// WithSummaryPath overrides where the best-practices summary is written
// (DREAMWEAVE_SUMMARY_PATH env var).
func WithSummaryPath(path string) Option {
	return func(o *resolvedOptions) { o.summaryPath = path }
}

// WithLogger sets the structured logger for the Engine.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithBackend replaces the config-selected storage backend. The Engine
// takes ownership and closes it on Close.
func WithBackend(b store.Backend) Option {
	return func(o *resolvedOptions) { o.backend = b }
}

// WithRetriever replaces the auto-configured knowledge retriever
// (Qdrant when QDRANT_URL is set, noop otherwise).
func WithRetriever(r knowledge.Retriever) Option {
	return func(o *resolvedOptions) { o.retriever = r }
}

// WithMetricsFetcher replaces the HTTP metrics fetcher used for delayed
// engagement data.
func WithMetricsFetcher(f metricsync.Fetcher) Option {
	return func(o *resolvedOptions) { o.fetcher = f }
}

// WithClock overrides the time source. Tests use this to make recency
// decay and pending-check readiness deterministic.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}
