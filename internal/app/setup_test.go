package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cesarhb/kb-engine-playground/internal/config"
)

func TestQualifiedModelName(t *testing.T) {
	assert.Equal(t, "ollama/llama3.2", qualifiedModelName(config.ProviderOllama, "llama3.2"))
	assert.Equal(t, "openai/gpt-4o-mini", qualifiedModelName(config.ProviderOpenAI, "gpt-4o-mini"))
	// Gemini models register under the googleai namespace.
	assert.Equal(t, "googleai/gemini-2.5-flash", qualifiedModelName(config.ProviderGemini, "gemini-2.5-flash"))
}
