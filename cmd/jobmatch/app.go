package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/config"
	"github.com/kailas-cloud/jobmatch/internal/db"
	dbRedis "github.com/kailas-cloud/jobmatch/internal/db/redis"
	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
	"github.com/kailas-cloud/jobmatch/internal/repository/embcache"
	"github.com/kailas-cloud/jobmatch/internal/repository/jobindex"
	"github.com/kailas-cloud/jobmatch/internal/repository/ledger"
	"github.com/kailas-cloud/jobmatch/internal/repository/memindex"
	"github.com/kailas-cloud/jobmatch/internal/repository/pgindex"
	"github.com/kailas-cloud/jobmatch/internal/scraper"
	chiTransport "github.com/kailas-cloud/jobmatch/internal/transport/chi"
	"github.com/kailas-cloud/jobmatch/internal/transport/authstore"
	"github.com/kailas-cloud/jobmatch/internal/transport/gemini"
	"github.com/kailas-cloud/jobmatch/internal/transport/hashing"
	openaiTransport "github.com/kailas-cloud/jobmatch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/jobmatch/internal/usecase/embedding"
	"github.com/kailas-cloud/jobmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/jobmatch/internal/usecase/health"
	"github.com/kailas-cloud/jobmatch/internal/usecase/ingest"
	"github.com/kailas-cloud/jobmatch/internal/usecase/jobsync"
	"github.com/kailas-cloud/jobmatch/internal/usecase/match"
	searchuc "github.com/kailas-cloud/jobmatch/internal/usecase/search"
)

// vectorIndex is what the use cases need from any backend.
type vectorIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, docs []domain.IndexedDocument) ([]batch.Result, error)
	SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.ScoredDocument, error)
	SearchKeyword(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// app is the composition root shared by all commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	redis   db.Store // nil unless the driver is redis/valkey
	index   vectorIndex
	ledger  jobsync.Ledger
	store   *authstore.Client // nil when no intake endpoint is configured
	closers []func()

	docEmbedder   domain.Embedder
	queryEmbedder domain.Embedder
	generator     explain.Generator
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterHTTPMetrics()
	metrics.RegisterPipelineMetrics()

	if err := a.openIndex(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.docEmbedder = a.buildEmbedder(metrics.RoleDocument, cfg.Embedding.DocumentInstruction)
	a.queryEmbedder = a.buildEmbedder(metrics.RoleQuery, cfg.Embedding.QueryInstruction)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	gen, err := a.buildGenerator(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.generator = gen

	if cfg.Store.Enabled() {
		a.store = authstore.New(authstore.Config{
			IntakeURL: cfg.Store.IntakeURL,
			JobsURL:   cfg.Store.JobsURL,
			APIKey:    cfg.Store.APIKey,
			Timeout:   config.Seconds(cfg.Store.TimeoutSec),
		})
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openIndex connects the configured vector index backend and its pending ledger.
func (a *app) openIndex(ctx context.Context) error {
	v := a.cfg.VectorIndex
	timeout := config.Seconds(v.TimeoutSec)

	switch v.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      v.Addrs,
			Password:   v.Password,
			TextSearch: v.TextSearch != nil && *v.TextSearch,
		})
		if err != nil {
			return fmt.Errorf("create %s store: %w", v.Driver, err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, config.Seconds(v.ReadinessTimeout)); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		a.redis = store
		a.index = jobindex.New(store, jobindex.Config{
			KeyPrefix:       v.KeyPrefix,
			Dimensions:      v.Dimensions,
			HNSWM:           v.HNSWM,
			HNSWEFConstruct: v.HNSWEFConstruction,
			Timeout:         timeout,
		})
		a.ledger = ledger.NewRedis(store, v.KeyPrefix+"pending")

	case config.DriverPostgres:
		pctx, cancel := context.WithTimeout(ctx, config.Seconds(v.ReadinessTimeout))
		defer cancel()
		store, err := pgindex.New(pctx, pgindex.Config{
			DSN:            v.DSN,
			MaxConns:       v.MaxConns,
			MigrateOnStart: true,
			Dimensions:     v.Dimensions,
			Timeout:        timeout,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("open postgres index: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.index = store
		a.ledger = store.Ledger()

	case config.DriverMemory:
		a.index = memindex.New(v.Dimensions)
		a.ledger = ledger.NewMemory()
		a.logger.Warn("Using in-memory vector index; data is lost on exit")

	default:
		return fmt.Errorf("unknown vector index driver %q", v.Driver)
	}

	if err := a.index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	a.logger.Info("Vector index ready", zap.String("driver", v.Driver), zap.Int("dimensions", v.Dimensions))
	return nil
}

// buildEmbedder assembles the decorator chain for one role:
// provider -> Cached -> Instrumented -> Instruction.
func (a *app) buildEmbedder(role, instruction string) domain.Embedder {
	e := a.cfg.Embedding

	var base domain.Embedder
	switch e.Provider {
	case config.EmbeddingHashing:
		base = hashing.New(e.Dimensions)
	default:
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Provider:   e.Provider,
			Role:       role,
			Timeout:    config.Seconds(e.TimeoutSec),
			Logger:     a.logger,
		})
	}

	// Cached
	embedder := base
	if e.Cache && a.redis != nil {
		embedder = embcache.New(base, a.redis, e.Model, metrics.EmbeddingCache(role), a.logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.Model, e.BatchSize, a.logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func (a *app) buildGenerator(ctx context.Context) (explain.Generator, error) {
	g := a.cfg.Generation
	switch g.Provider {
	case config.GenerationOpenAI:
		return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:      g.APIKey,
			BaseURL:     g.BaseURL,
			Model:       g.Model,
			Temperature: g.Temperature,
			Timeout:     config.Seconds(g.TimeoutSec),
		}), nil
	case config.GenerationGemini:
		gen, err := gemini.NewGenerator(ctx, g.APIKey, g.Model)
		if err != nil {
			return nil, fmt.Errorf("create gemini generator: %w", err)
		}
		return gen, nil
	default:
		a.logger.Info("Generation disabled; explanations use the fallback sentence")
		return nil, nil
	}
}

// syncService builds the sync engine. sourceFile overrides the configured crawl file.
func (a *app) syncService(sourceFile string) (*jobsync.Service, error) {
	if a.store == nil {
		return nil, errors.New("store.intake_url is not configured")
	}
	if sourceFile == "" {
		sourceFile = a.cfg.Sync.SourceFile
	}

	var source jobsync.Source = scraper.Static(nil)
	if sourceFile != "" {
		source = scraper.NewFileSource(sourceFile, a.cfg.Sync.DefaultSource, a.logger)
	} else {
		a.logger.Warn("No crawl source configured; sync passes collect nothing")
	}

	return jobsync.New(source, a.store, a.ingestService(), a.ledger, jobsync.Config{
		BatchLimit:     a.cfg.Sync.BatchLimit,
		MaxRetries:     a.cfg.Store.MaxRetries,
		InitialBackoff: time.Duration(a.cfg.Store.InitialBackoffMS) * time.Millisecond,
		AttemptTimeout: config.Seconds(a.cfg.Store.TimeoutSec),
	}, a.logger.Named("sync")), nil
}

func (a *app) ingestService() *ingest.Service {
	return ingest.New(a.index, a.docEmbedder, a.logger.Named("ingest"))
}

// server assembles the HTTP handlers. syncer may be nil.
func (a *app) server(syncer *jobsync.Service) *chiTransport.Server {
	cfg := a.cfg

	var embHealth healthuc.Checker
	if hc, ok := a.docEmbedder.(domain.HealthChecker); ok {
		embHealth = hc
	}
	var storeHealth healthuc.Checker
	if a.store != nil {
		storeHealth = a.store
	}

	svc := chiTransport.Services{
		Ingest: a.ingestService(),
		Search: searchuc.New(a.index, a.queryEmbedder, searchuc.Config{MaxK: cfg.Search.MaxK}),
		Match: match.New(a.queryEmbedder, a.docEmbedder, match.Config{
			BatchSize:     cfg.Embedding.BatchSize,
			Concurrency:   cfg.Match.Concurrency,
			MaxCandidates: cfg.Match.MaxCandidates,
		}, a.logger.Named("match")),
		Explain: explain.New(a.generator, explain.Config{
			QueryLimit:       cfg.Generation.QueryLimit,
			DescriptionLimit: cfg.Generation.DescriptionLimit,
			Timeout:          config.Seconds(cfg.Generation.TimeoutSec),
		}, a.logger.Named("explain")),
		Health: healthuc.New(a.index, embHealth, storeHealth),
	}
	if syncer != nil {
		svc.Sync = syncer
	}

	return chiTransport.NewServer(svc, chiTransport.Config{
		DefaultK:       cfg.Search.DefaultK,
		FileK:          cfg.Search.FileK,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		AuthHeader:     cfg.Auth.Header,
		APIKeys:        cfg.Auth.APIKeys,
	}, a.logger)
}
