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
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/firebase/genkit/go/plugins/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cesarhb/kb-engine-playground/db"
	"github.com/cesarhb/kb-engine-playground/internal/agent"
	"github.com/cesarhb/kb-engine-playground/internal/config"
	"github.com/cesarhb/kb-engine-playground/internal/knowledge"
	"github.com/cesarhb/kb-engine-playground/internal/log"
	"github.com/cesarhb/kb-engine-playground/internal/rag"
)

// retrieverName is the Genkit registry name of the documents retriever.
const retrieverName = "kbengine/documents"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
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

	postgres, err := providePostgresPlugin(ctx, pool, cfg)
	if err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg, postgres, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	docStore, err := provideDocStore(ctx, g, postgres, cfg, embedder)
	if err != nil {
		return nil, err
	}
	a.DocStore = docStore

	store, err := knowledge.New(pool, embedder, cfg.Collection, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	a.Retriever = rag.New(store).Define(g, retrieverName)

	ag, err := agent.New(agent.Config{
		Genkit:      g,
		Retriever:   a.Retriever,
		ModelName:   qualifiedModelName(cfg.Provider, cfg.ModelName),
		Temperature: cfg.Temperature,
		TopK:        cfg.RetrieverK,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = ag

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready when flows run.
// Returns a no-op cleanup when no OTLP endpoint is configured.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// OTEL env vars are read by Genkit's TracerProvider. Setup runs
	// once at startup before any goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("OTLP tracing enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
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

// provideDBPool runs migrations and creates a PostgreSQL connection
// pool with sensible defaults for connection management.
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

// providePostgresPlugin wraps the existing connection pool for use
// with Genkit's DocStore.
func providePostgresPlugin(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config) (*postgresql.Postgres, error) {
	engine, err := postgresql.NewPostgresEngine(ctx,
		postgresql.WithPool(pool),
		postgresql.WithDatabase(cfg.PostgresDBName),
	)
	if err != nil {
		return nil, fmt.Errorf("creating postgres engine: %w", err)
	}
	return &postgresql.Postgres{Engine: engine}, nil
}

// provideGenkit initializes Genkit with the configured model provider
// and the PostgreSQL plugin. Ollama requires explicit model and
// embedder registration; the hosted providers auto-discover.
func provideGenkit(ctx context.Context, cfg *config.Config, postgres *postgresql.Postgres, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	case config.ProviderGemini:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}, postgres))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Each provider registers embedders differently:
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
//   - gemini: GoogleAIEmbedder(g, modelName)
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDocStore creates the Genkit PostgreSQL DocStore used for
// indexing. The plugin also returns its own retriever, but search goes
// through the knowledge store so results carry similarity scores.
func provideDocStore(ctx context.Context, g *genkit.Genkit, postgres *postgresql.Postgres, cfg *config.Config, embedder ai.Embedder) (*postgresql.DocStore, error) {
	docStore, _, err := postgresql.DefineRetriever(ctx, g, postgres,
		rag.NewDocStoreConfig(cfg.Collection, embedder))
	if err != nil {
		return nil, fmt.Errorf("defining doc store: %w", err)
	}
	return docStore, nil
}

// qualifiedModelName prefixes the model with its Genkit provider
// namespace. Gemini models register under "googleai".
func qualifiedModelName(provider, model string) string {
	if provider == config.ProviderGemini {
		return "googleai/" + model
	}
	return provider + "/" + model
}
