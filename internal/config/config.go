// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (DATABASE_URL, EMBED_MAX_CHARS, KB_* overrides)
//  2. Config file (./config.yaml or ~/.kbengine/config.yaml)
//  3. Defaults (local Ollama + local Postgres, matching docker-compose.yml)
//
// Sensitive values (the Postgres password) are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMaxChars indicates embed_max_chars is out of range.
	ErrInvalidMaxChars = errors.New("invalid embed max chars")

	// ErrInvalidChunkOverlap indicates the chunk overlap is out of range.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	// DefaultEmbedderModel is the default embedding model.
	// mxbai-embed-large has a 512-token input limit; see EmbedMaxChars.
	DefaultEmbedderModel = "mxbai-embed-large"

	// DefaultEmbedMaxChars caps chunk length in characters. The embedder's
	// 512-token limit translates conservatively to ~500 chars for mixed
	// tokenizers, leaving headroom.
	DefaultEmbedMaxChars = 500

	// EmbedderDimensions is the vector width produced by mxbai-embed-large.
	// Must match the embedding column in db/migrations.
	EmbedderDimensions = 1024

	// DefaultCollection is the default documents table name.
	DefaultCollection = "documents"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider"`       // "ollama" (default), "openai", "gemini"
	ModelName     string  `mapstructure:"model_name"`     // e.g. "llama3.2", "gpt-4o-mini", "gemini-2.5-flash"
	EmbedderModel string  `mapstructure:"embedder_model"` // e.g. "mxbai-embed-large"
	Temperature   float32 `mapstructure:"temperature"`
	OllamaHost    string  `mapstructure:"ollama_host"` // Only used when provider is "ollama"

	// Chunking configuration
	EmbedMaxChars int `mapstructure:"embed_max_chars"` // Hard upper bound on chunk length
	ChunkOverlap  int `mapstructure:"chunk_overlap"`   // 0 = derive as max(50, size/10)

	// Ingestion configuration
	SourcesFile string `mapstructure:"sources_file"` // Path to doc_sources.yaml
	Collection  string `mapstructure:"collection"`   // Documents table name

	// Retrieval configuration
	RetrieverK int `mapstructure:"retriever_k"` // Documents per retrieval (default 4)

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Server configuration
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst"`  // Per-IP rate limiter burst (0 = default 60)

	// Observability configuration (optional OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // e.g. "localhost:4318"; empty disables tracing
	ServiceName  string `mapstructure:"service_name"`
	Environment  string `mapstructure:"environment"`
}

// Load loads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".kbengine")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(configDir)

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{".", configDir})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has the highest priority for PostgreSQL settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", "llama3.2")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Chunking defaults
	v.SetDefault("embed_max_chars", DefaultEmbedMaxChars)
	v.SetDefault("chunk_overlap", 0) // derived from embed_max_chars when 0

	// Ingestion defaults
	v.SetDefault("sources_file", "config/doc_sources.yaml")
	v.SetDefault("collection", DefaultCollection)

	// Retrieval defaults
	v.SetDefault("retriever_k", 4)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kbengine")
	v.SetDefault("postgres_password", "kbengine_dev_password")
	v.SetDefault("postgres_db_name", "kbengine")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	// Observability defaults (tracing disabled unless endpoint set)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "kb-engine")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// DATABASE_URL and GITHUB_PERSONAL_ACCESS_TOKEN are read directly where
// needed, not via viper. Provider API keys (OPENAI_API_KEY, GEMINI_API_KEY)
// are read directly by the Genkit plugins.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "KB_PROVIDER")
	mustBind("model_name", "KB_MODEL_NAME")
	mustBind("embedder_model", "KB_EMBEDDER_MODEL")
	mustBind("ollama_host", "OLLAMA_BASE_URL")
	mustBind("embed_max_chars", "EMBED_MAX_CHARS")
	mustBind("sources_file", "KB_SOURCES_FILE")
	mustBind("collection", "KB_COLLECTION")
	mustBind("cors_origins", "KB_CORS_ORIGINS")
	mustBind("trust_proxy", "KB_TRUST_PROXY")
	mustBind("rate_burst", "KB_RATE_BURST")
	mustBind("otlp_endpoint", "OTLP_ENDPOINT")
}

// ResolvedChunkOverlap returns the effective chunk overlap: the configured
// value, or max(50, size/10) when unset.
func (c *Config) ResolvedChunkOverlap() int {
	if c.ChunkOverlap > 0 {
		return c.ChunkOverlap
	}
	overlap := c.EmbedMaxChars / 10
	if overlap < 50 {
		overlap = 50
	}
	return overlap
}
