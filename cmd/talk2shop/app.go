package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/config"
	dbRedis "github.com/kailas-cloud/talk2shop/internal/db/redis"
	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/vector"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
	"github.com/kailas-cloud/talk2shop/internal/repository/embcache"
	pgrepo "github.com/kailas-cloud/talk2shop/internal/repository/postgres"
	productrepo "github.com/kailas-cloud/talk2shop/internal/repository/product"
	vectorrepo "github.com/kailas-cloud/talk2shop/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/talk2shop/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/talk2shop/internal/transport/openai"
	qdrantTransport "github.com/kailas-cloud/talk2shop/internal/transport/qdrant"
	catalogrepo "github.com/kailas-cloud/talk2shop/internal/usecase/catalog"
	chatuc "github.com/kailas-cloud/talk2shop/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/talk2shop/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/talk2shop/internal/usecase/health"
	"github.com/kailas-cloud/talk2shop/internal/usecase/indexing"
	"github.com/kailas-cloud/talk2shop/internal/usecase/retrieval"
	"github.com/kailas-cloud/talk2shop/internal/usecase/vectorindex"
	"github.com/kailas-cloud/talk2shop/internal/version"
)

// catalogStore is what the redis and postgres catalog repositories both provide.
type catalogStore interface {
	catalogrepo.Repository
	retrieval.Catalog
	indexing.Source
	indexing.Marker
	EnsureSchema(ctx context.Context) error
}

// app is the composition root shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store    *dbRedis.Store
	catalog  catalogStore
	index    *vectorindex.Adapter
	embedder domain.Embedder

	retrieval *retrieval.Service
	indexer   *indexing.Indexer
	reindexer *indexing.Reindexer
	products  *catalogrepo.Service
	chat      *chatuc.Agent // nil when chat.api_key is empty
	health    *healthuc.Service

	closers []func() error
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	metrics.Register()

	a.store, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })

	if err := a.store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))

	catalogCheck, err := a.buildCatalog(ctx)
	if err != nil {
		return nil, err
	}

	providerCheck, err := a.buildEmbedder()
	if err != nil {
		return nil, err
	}

	if err := a.buildIndex(); err != nil {
		return nil, err
	}

	a.retrieval = retrieval.New(a.catalog, a.index, a.embedder, retrieval.Options{
		MinTopK:        cfg.Search.MinTopK,
		MaxTopK:        cfg.Search.MaxTopK,
		SemanticTopK:   cfg.Search.SemanticTopK,
		EmbedTimeout:   cfg.Search.EmbedTimeout(),
		VectorTimeout:  cfg.Search.VectorTimeout(),
		CatalogTimeout: cfg.Search.CatalogTimeout(),
	})

	a.indexer = indexing.NewIndexer(a.embedder, a.index, a.catalog, indexing.Policy{
		MaxAttempts:    cfg.Indexing.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Indexing.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Indexing.MaxBackoffMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Indexing.AttemptTimeoutMs) * time.Millisecond,
	}, logger)
	a.reindexer = indexing.NewReindexer(a.catalog, a.embedder, a.index, a.indexer, logger)

	a.products = catalogrepo.New(a.catalog, a.indexer).
		WithPagination(cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	if cfg.Chat.APIKey != "" {
		a.chat = chatuc.New(a.chatClient(), a.retrieval, a.catalog, chatuc.Options{
			Model:          cfg.Chat.Model,
			MaxSteps:       cfg.Chat.MaxSteps,
			MaxTokens:      cfg.Chat.MaxTokens,
			Temperature:    cfg.Chat.Temperature,
			InventoryLimit: cfg.Chat.InventoryLimit,
		})
	}

	a.health = healthuc.New(catalogCheck, a.index, providerCheck)

	return a, nil
}

// buildCatalog opens the configured product store and makes sure its schema exists.
func (a *app) buildCatalog(ctx context.Context) (healthuc.Checker, error) {
	switch a.cfg.Catalog.Driver {
	case config.CatalogPostgres:
		pg := a.cfg.Catalog.Postgres
		db, err := pgrepo.Connect(ctx, pgrepo.Options{
			DSN:             pg.DSN,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(pg.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.catalog = pgrepo.New(db)
		if err := a.catalog.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return postgresCheck(db), nil

	default:
		a.catalog = productrepo.New(a.store, a.cfg.Redis.KeyPrefix)
		if err := a.catalog.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("redis product index: %w", err)
		}
		return healthuc.CheckFunc(a.store.Ping), nil
	}
}

func postgresCheck(db *sqlx.DB) healthuc.Checker {
	return healthuc.CheckFunc(db.PingContext)
}

// buildEmbedder assembles provider -> cache -> token cap -> metrics. The returned checker
// probes the raw provider.
func (a *app) buildEmbedder() (healthuc.Checker, error) {
	ec := a.cfg.Embedding
	if ec.APIKey == "" {
		return nil, errors.New("embedding.api_key is required")
	}

	provider := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Logger:     a.logger,
	})

	var e domain.Embedder = provider
	e = embcache.New(e, a.store, a.cfg.Redis.KeyPrefix, ec.Model,
		time.Duration(ec.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, a.logger)
	if ec.MaxTokens > 0 {
		e = embeddinguc.NewTruncatingEmbedder(e, ec.Encoding, ec.MaxTokens, a.logger)
	}
	a.embedder = embeddinguc.NewInstrumentedEmbedder(e, ec.Provider, ec.Model, ec.Dimensions, a.logger)

	a.logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
	)
	return provider, nil
}

func (a *app) buildIndex() error {
	spec, err := vector.NewSpec(a.cfg.Vector.IndexPrefix, a.cfg.Embedding.Model, a.cfg.Embedding.Dimensions)
	if err != nil {
		return fmt.Errorf("vector index spec: %w", err)
	}

	var backend vectorindex.Backend
	switch a.cfg.Vector.Driver {
	case config.VectorQdrant:
		q, err := qdrantTransport.Dial(a.cfg.Vector.Qdrant.Host, a.cfg.Vector.Qdrant.Port, qdrantTransport.HNSW{
			M:              a.cfg.Vector.HNSWM,
			EFConstruction: a.cfg.Vector.HNSWEFConstruct,
		})
		if err != nil {
			return fmt.Errorf("dial qdrant: %w", err)
		}
		a.closers = append(a.closers, q.Close)
		backend = q
	default:
		backend = vectorrepo.New(a.store, a.cfg.Redis.KeyPrefix, vectorrepo.HNSW{
			M:              a.cfg.Vector.HNSWM,
			EFConstruction: a.cfg.Vector.HNSWEFConstruct,
		})
	}

	a.index = vectorindex.New(backend, spec,
		vectorindex.WithPollInterval(a.cfg.Vector.PollInterval()),
		vectorindex.WithReadyTimeout(a.cfg.Vector.ReadyTimeout()),
		vectorindex.WithLogger(a.logger),
	)
	a.logger.Info("Vector index configured",
		zap.String("driver", a.cfg.Vector.Driver),
		zap.String("index", spec.Name),
		zap.Int("dim", spec.Dim),
	)
	return nil
}

func (a *app) chatClient() *openai.Client {
	cc := openai.DefaultConfig(a.cfg.Chat.APIKey)
	if a.cfg.Chat.BaseURL != "" {
		cc.BaseURL = a.cfg.Chat.BaseURL
	}
	cc.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   time.Duration(a.cfg.Chat.TimeoutSec) * time.Second,
	}
	return openai.NewClientWithConfig(cc)
}

// httpServer builds the API server around the use cases.
func (a *app) httpServer() *chiTransport.Server {
	var assistant chiTransport.Assistant
	if a.chat != nil {
		assistant = a.chat
	}
	return chiTransport.NewServer(a.retrieval, a.products, assistant, a.health).
		WithLimits(request.Limits{DefaultLimit: a.cfg.Search.DefaultLimit, MaxLimit: a.cfg.Search.MaxLimit})
}

// Close lets pending write-throughs finish, then releases connections in reverse order of
// acquisition.
func (a *app) Close() {
	if a.products != nil {
		a.products.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func startupFields(env string, cfg config.Config) []zap.Field {
	return []zap.Field{
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("vector_driver", cfg.Vector.Driver),
	}
}
