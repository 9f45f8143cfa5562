package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/genai"

	"github.com/finsight/finsight/db"
	"github.com/finsight/finsight/internal/answer"
	httpapi "github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/classify"
	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/finance"
	"github.com/finsight/finsight/internal/llm"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/quota"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/search"
	"github.com/finsight/finsight/internal/session"
	"github.com/finsight/finsight/internal/sqlgen"
)

// Setup initializes every component in dependency order. On failure it
// tears down whatever was already initialized.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	model, err := llm.NewClient(g, cfg.FullModelName(), logger)
	if err != nil {
		return nil, err
	}

	a.Companies, err = company.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	a.Sessions, err = session.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	a.Quota, err = quota.NewStore(pool, quota.Limits{
		SessionDaily: cfg.SessionDailyLimit,
		IPDaily:      cfg.IPDailyLimit,
	}, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.New(model, a.Companies, logger)
	if err != nil {
		return nil, err
	}
	sqlGen, err := sqlgen.NewGenerator(model, pool, logger)
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewSearcher(pool, embedder, cfg.TopK, logger, searchOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	answers, err := answer.NewGenerator(model, logger)
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = rag.NewPipeline(a.Quota, classifier, a.Companies, sqlGen, searcher, answers, logger)
	if err != nil {
		return nil, err
	}

	a.Server, err = httpapi.NewServer(httpapi.ServerConfig{
		Logger:    logger,
		Pipeline:  a.Pipeline,
		Sessions:  a.Sessions,
		Quota:     a.Quota,
		Companies: a.Companies,
		Snapshots: func(ctx context.Context, ticker string) (*finance.Snapshot, error) {
			return finance.LatestSnapshot(ctx, pool, ticker)
		},
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.Tracing.Environment == "dev",
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	if err := a.startCleanupScheduler(appCtx); err != nil {
		return nil, err
	}

	return a, nil
}

// provideOtelShutdown exports traces over OTLP HTTP to a local collector.
// Must run before genkit.Init so the span processor is registered on the
// TracerProvider Genkit uses.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing

	endpoint := tc.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	// OTEL env vars are picked up by Genkit's TracerProvider. Setenv is not
	// concurrent-safe but Setup runs once before any goroutines start.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured model provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderGemini, config.ProviderGoogleAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	default: // openai
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	}

	logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// searchOptions returns provider-specific search options. Gemini embedding
// models default to 3072 dimensions, so the output dimensionality must be
// pinned to match the vector columns.
func searchOptions(cfg *config.Config) []search.Option {
	switch cfg.Provider {
	case config.ProviderGemini, config.ProviderGoogleAI:
		dim := int32(search.VectorDimension)
		return []search.Option{
			search.WithEmbedOptions(&genai.EmbedContentConfig{OutputDimensionality: &dim}),
		}
	default:
		return nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderGemini, config.ProviderGoogleAI:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	default:
		// OpenAI auto-registers embedders in Init.
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
