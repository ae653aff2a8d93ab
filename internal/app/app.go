// Package app wires the application together: tracing, database pool,
// migrations, Genkit with the configured model provider, the knowledge
// store, and the chat agent.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cesarhb/kb-engine-playground/internal/agent"
	"github.com/cesarhb/kb-engine-playground/internal/config"
	"github.com/cesarhb/kb-engine-playground/internal/knowledge"
	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// App is the application container. Setup populates it and Close
// releases everything in reverse order.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	DocStore  *postgresql.DocStore
	Retriever ai.Retriever
	Knowledge *knowledge.Store
	Agent     *agent.Agent

	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
