package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 1. Provider validation
	switch c.Provider {
	case ProviderOllama:
		// Local, no API key required.
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidProvider, c.Provider, []string{ProviderOllama, ProviderOpenAI, ProviderGemini})
	}

	// 2. Model configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Chunking validation
	if c.EmbedMaxChars < 1 {
		return fmt.Errorf("%w: embed_max_chars must be positive, got %d", ErrInvalidMaxChars, c.EmbedMaxChars)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.EmbedMaxChars {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than embed_max_chars %d",
			ErrInvalidChunkOverlap, c.ChunkOverlap, c.EmbedMaxChars)
	}
	// The derived default max(50, size/10) can also reach the chunk
	// size when embed_max_chars is very small.
	if overlap := c.ResolvedChunkOverlap(); overlap >= c.EmbedMaxChars {
		return fmt.Errorf("%w: derived chunk_overlap %d must be smaller than embed_max_chars %d, raise embed_max_chars or set chunk_overlap",
			ErrInvalidChunkOverlap, overlap, c.EmbedMaxChars)
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// 5. PostgreSQL SSL mode validation
	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
