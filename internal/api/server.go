// Package api implements the JSON HTTP surface of kb-engine: chat,
// similarity search, and health probes.
package api

import (
	"errors"
	"net/http"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Agent       Answerer // Required
	Store       Searcher // Required
	Pool        Pinger   // Optional: nil disables the database readiness check
	Docs        Counter  // Optional: document count in /ready
	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("knowledge store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}
	sh := &searchHandler{store: cfg.Store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", ch.send)
	mux.HandleFunc("GET /search", sh.search)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes sit outside the middleware stack so rate limiting
	// never starves Kubernetes probes.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Docs, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
