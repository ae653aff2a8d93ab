package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

const readinessTimeout = 2 * time.Second

// Pinger checks database connectivity. *pgxpool.Pool satisfies this.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports the number of indexed documents. *knowledge.Store
// satisfies this.
type Counter interface {
	Count(ctx context.Context, filter map[string]any) (int, error)
}

// health is a liveness probe for Docker and Kubernetes.
// Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can reach its database, and how
// many documents are indexed. A nil pinger means no database dependency
// was configured and the server is considered ready.
func readiness(pinger Pinger, counter Counter, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"reason": "database unreachable",
			}, logger)
			return
		}

		resp := map[string]any{"status": "ready"}
		if counter != nil {
			count, err := counter.Count(ctx, nil)
			if err != nil {
				logger.Warn("counting documents for readiness", "error", err)
			} else {
				resp["documents"] = count
			}
		}
		writeJSON(w, http.StatusOK, resp, logger)
	}
}
