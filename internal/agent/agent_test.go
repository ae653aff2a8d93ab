package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errors.New("429 Too Many Requests"), want: true},
		{name: "quota", err: errors.New("Quota Exceeded for model"), want: true},
		{name: "server error", err: errors.New("upstream returned 503"), want: true},
		{name: "unavailable", err: errors.New("model temporarily UNAVAILABLE"), want: true},
		{name: "network", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "timeout", err: errors.New("context deadline exceeded (Client.Timeout)"), want: true},
		{name: "bad request", err: errors.New("invalid request: unknown model"), want: false},
		{name: "auth", err: errors.New("401 unauthorized"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.MaxInterval)
}

func TestBuildContextPrompt(t *testing.T) {
	docs := []*ai.Document{
		ai.DocumentFromText("pgvector stores embeddings in Postgres.", nil),
		ai.DocumentFromText("HNSW indexes trade recall for speed.", nil),
	}

	prompt := buildContextPrompt("what is pgvector?", docs)
	assert.Contains(t, prompt, "[1] pgvector stores embeddings")
	assert.Contains(t, prompt, "[2] HNSW indexes")
	assert.Contains(t, prompt, "Question: what is pgvector?")
}

func TestBuildContextPromptEmpty(t *testing.T) {
	prompt := buildContextPrompt("anything?", nil)
	assert.Contains(t, prompt, "No relevant context")
	assert.Contains(t, prompt, "Question: anything?")
}

func TestDocumentText(t *testing.T) {
	doc := &ai.Document{Content: []*ai.Part{
		ai.NewTextPart("part one "),
		ai.NewTextPart("part two"),
	}}
	assert.Equal(t, "part one part two", documentText(doc))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "genkit instance is required")
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	// Validation fires before any dependency is touched.
	a := &Agent{}
	_, err := a.Answer(context.Background(), "   ")
	assert.ErrorContains(t, err, "must not be empty")

	_, err = a.AnswerWithTools(context.Background(), "")
	assert.ErrorContains(t, err, "must not be empty")
}
