// Package dreamweaving is the public API for embedding the lesson
// effectiveness feedback engine in a content-generation pipeline.
//
// Pipeline consumers construct an Engine and drive the feedback loop:
//
//	eng, err := dreamweaving.New(
//	    dreamweaving.WithLogger(logger),
//	    dreamweaving.WithVersion(version),
//	)
//	if err != nil { ... }
//	defer eng.Close()
//
//	rec, _ := eng.Recommend(ctx, dreamweaving.RecommendRequest{Topic: "deep sleep"})
//	// ... generate with rec.PromptBlock, then:
//	eng.RecordRunOutcome(ctx, outcome)
//
// The import graph enforces a strict no-cycle rule: dreamweaving (root)
// imports internal/*, but internal/* never imports the root.
package dreamweaving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"

	"github.com/randysalars/dreamweaving/internal/config"
	"github.com/randysalars/dreamweaving/internal/knowledge"
	enginemcp "github.com/randysalars/dreamweaving/internal/mcp"
	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/improve"
	"github.com/randysalars/dreamweaving/internal/service/lessons"
	"github.com/randysalars/dreamweaving/internal/service/metricsync"
	"github.com/randysalars/dreamweaving/internal/service/queries"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
	"github.com/randysalars/dreamweaving/internal/store"
	"github.com/randysalars/dreamweaving/internal/store/filestore"
	"github.com/randysalars/dreamweaving/internal/store/pgstore"
	"github.com/randysalars/dreamweaving/internal/store/sqlitestore"
	"github.com/randysalars/dreamweaving/internal/telemetry"
)

// Engine wires the feedback loop: outcome recording, effectiveness
// scoring, query tracking, improvement cycles, and delayed-metric sync.
// Construct with New(); it is safe for sequential use by one caller.
type Engine struct {
	cfg          config.Config
	store        *store.Store
	scorer       *scoring.Scorer
	registry     *lessons.Registry
	orchestrator *improve.Orchestrator
	queries      *queries.Cache
	syncer       *metricsync.Syncer
	retriever    knowledge.Retriever
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string

	outcomes metric.Int64Counter
}

// New initialises the engine: loads configuration, opens the configured
// storage backend, and wires all services. No goroutines are started.
func New(opts ...Option) (*Engine, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.summaryPath != "" {
		cfg.SummaryPath = o.summaryPath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("dreamweave starting", "version", version, "backend", cfg.Backend)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	backend := o.backend
	if backend == nil {
		backend, err = newBackend(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}

	var storeOpts []store.Option
	if o.clock != nil {
		storeOpts = append(storeOpts, store.WithClock(o.clock))
	}
	st := store.New(backend, logger, storeOpts...)

	retriever := o.retriever
	if retriever == nil {
		if cfg.QdrantURL != "" {
			qr, err := knowledge.NewQdrantRetriever(knowledge.QdrantConfig{
				URL:        cfg.QdrantURL,
				APIKey:     cfg.QdrantAPIKey,
				Collection: cfg.QdrantCollection,
			}, logger)
			if err != nil {
				_ = st.Close()
				_ = otelShutdown(context.Background())
				return nil, fmt.Errorf("qdrant: %w", err)
			}
			retriever = qr
			logger.Info("knowledge retrieval: qdrant", "collection", cfg.QdrantCollection)
		} else {
			retriever = knowledge.NoopRetriever{}
			logger.Info("knowledge retrieval: disabled (no QDRANT_URL)")
		}
	}

	fetcher := o.fetcher
	if fetcher == nil && cfg.MetricsBaseURL != "" {
		fetcher = metricsync.NewHTTPFetcher(cfg.MetricsBaseURL, cfg.MetricsAPIKey, cfg.MetricsTimeout)
		logger.Info("delayed metrics: http fetcher", "base_url", cfg.MetricsBaseURL)
	}

	scorer := scoring.New(st, nil, logger)
	registry := lessons.New(st, logger)
	orchestrator := improve.New(st, scorer, registry, cfg.SummaryPath, logger)
	queryCache := queries.New(st, retriever, logger)

	var syncer *metricsync.Syncer
	if fetcher != nil {
		syncer = metricsync.New(st, scorer, fetcher, logger)
	} else {
		logger.Info("delayed metrics: disabled (no fetcher configured)")
	}

	meter := telemetry.Meter("dreamweaving")
	outcomes, _ := meter.Int64Counter("dreamweave.outcomes.recorded",
		metric.WithDescription("Generation run outcomes recorded"),
	)

	return &Engine{
		cfg:          cfg,
		store:        st,
		scorer:       scorer,
		registry:     registry,
		orchestrator: orchestrator,
		queries:      queryCache,
		syncer:       syncer,
		retriever:    retriever,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
		outcomes:     outcomes,
	}, nil
}

func newBackend(cfg config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case "file":
		b, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		return b, nil
	case "sqlite":
		b, err := sqlitestore.New(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: %w", err)
		}
		return b, nil
	case "postgres":
		b, err := pgstore.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("pgstore: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// RecommendRequest selects lessons for an upcoming generation run.
type RecommendRequest struct {
	Topic          string
	DesiredOutcome string
	Category       string
	Limit          int
}

// Recommendation is the advice returned for a run: ranked lessons, a
// ready-to-inject prompt block, and proven queries for the topic.
type Recommendation struct {
	Lessons     []scoring.RankedLesson    `json:"lessons"`
	PromptBlock string                    `json:"prompt_block,omitempty"`
	Queries     []queries.QuerySuggestion `json:"queries,omitempty"`
}

// Recommend returns the highest-effectiveness lessons for a run context,
// with proven knowledge-base queries for the topic.
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest) (Recommendation, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.MaxRankedLessons
	}
	all, err := e.registry.List(ctx, false)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommend: %w", err)
	}
	contextKey := model.GenerationContext{Topic: req.Topic, DesiredOutcome: req.DesiredOutcome}.Key()
	ranked, err := e.scorer.Ranked(ctx, all, req.Category, contextKey, limit)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommend: %w", err)
	}

	rec := Recommendation{
		Lessons:     ranked,
		PromptBlock: scoring.RenderLessonBlock(ranked),
	}
	if req.Topic != "" {
		suggestions, err := e.queries.SuggestQueries(ctx, req.Topic, req.DesiredOutcome, "", 5)
		if err != nil {
			// Query suggestions are advisory; a failure here must not
			// block lesson selection.
			e.logger.Warn("recommend: query suggestions failed", "error", err)
		} else {
			rec.Queries = suggestions
		}
	}
	return rec, nil
}

// RecordRunOutcome records one generation run's measured result, updates
// effectiveness for every applied lesson, and schedules a delayed-metrics
// check when the content was published.
func (e *Engine) RecordRunOutcome(ctx context.Context, outcome model.Outcome) (string, error) {
	if outcome.ExternalRef != "" && outcome.Delayed == nil {
		outcome.DelayedPending = true
	}
	id, err := e.store.RecordOutcome(ctx, outcome)
	if err != nil {
		return "", fmt.Errorf("record outcome: %w", err)
	}
	outcome.ID = id
	e.outcomes.Add(ctx, 1)

	contextKey := outcome.Context.Key()
	for _, lessonID := range outcome.AppliedLessons {
		if err := e.scorer.Update(ctx, lessonID, outcome, contextKey); err != nil {
			return id, fmt.Errorf("record outcome: %w", err)
		}
	}

	if outcome.ExternalRef != "" && outcome.Delayed == nil {
		if err := e.store.SchedulePendingCheck(ctx, id, outcome.ExternalRef, e.cfg.DelayedCheckDays); err != nil {
			return id, fmt.Errorf("record outcome: %w", err)
		}
	}
	return id, nil
}

// SearchKnowledge runs a tracked knowledge-base retrieval. The returned
// record ID links the query to an outcome later via LinkQueryToOutcome.
func (e *Engine) SearchKnowledge(ctx context.Context, query, subject, contentType, purpose string, limit int) ([]knowledge.Result, string, error) {
	results, rec, err := e.queries.Search(ctx, query, subject, contentType, purpose, limit)
	if err != nil {
		return nil, "", err
	}
	return results, rec.ID, nil
}

// LinkQueryToOutcome attaches an outcome's quality score to a recorded
// query so the query's pattern statistics reflect what it produced.
func (e *Engine) LinkQueryToOutcome(ctx context.Context, queryRecordID, outcomeID string) error {
	outcome, err := e.store.GetOutcome(ctx, outcomeID)
	if err != nil {
		return fmt.Errorf("link query: %w", err)
	}
	return e.queries.LinkQueryToOutcome(ctx, queryRecordID, outcomeID, outcome.Immediate.QualityScore)
}

// RunImprovementCycle executes one improvement cycle and returns its record.
func (e *Engine) RunImprovementCycle(ctx context.Context, scope string) (model.CycleRecord, error) {
	return e.orchestrator.RunCycle(ctx, scope, e.cfg.LookbackDays)
}

// SyncDelayedMetrics processes ready pending checks once. ErrSyncDisabled
// is returned when no metrics fetcher is configured.
func (e *Engine) SyncDelayedMetrics(ctx context.Context) (metricsync.Report, error) {
	if e.syncer == nil {
		return metricsync.Report{}, ErrSyncDisabled
	}
	return e.syncer.Run(ctx)
}

// ErrSyncDisabled indicates no delayed-metrics fetcher is configured.
var ErrSyncDisabled = errors.New("dreamweaving: delayed metrics sync disabled")

// Lessons exposes the lesson registry for CRUD.
func (e *Engine) Lessons() *lessons.Registry { return e.registry }

// Scorer exposes effectiveness scoring queries.
func (e *Engine) Scorer() *scoring.Scorer { return e.scorer }

// Queries exposes the query pattern cache.
func (e *Engine) Queries() *queries.Cache { return e.queries }

// Store exposes the persistence layer for read access from the CLI.
func (e *Engine) Store() *store.Store { return e.store }

// MCPServer builds the Model Context Protocol server over this engine.
func (e *Engine) MCPServer() *enginemcp.Server {
	return enginemcp.New(e.store, e.scorer, e.registry, e.queries, e.cfg.DelayedCheckDays, e.logger, e.version)
}

// Close releases the storage backend, retriever, and telemetry providers.
func (e *Engine) Close() error {
	var firstErr error
	if c, ok := e.retriever.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.otelShutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	e.logger.Info("dreamweave stopped")
	return firstErr
}
