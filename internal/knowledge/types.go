package knowledge

import "time"

// Document is a stored knowledge chunk.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Result is a search hit with its cosine similarity to the query,
// in [0, 1] where 1 is an exact match.
type Result struct {
	Document
	Similarity float64
}

// SearchOption configures a Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]any
	timeout time.Duration
}

const (
	DefaultTopK          = 4
	defaultSearchTimeout = 10 * time.Second
)

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:    DefaultTopK,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.topK < 1 {
		cfg.topK = DefaultTopK
	}
	return cfg
}

// WithTopK sets the number of results to return.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) { c.topK = k }
}

// WithFilter restricts results to documents whose metadata contains
// the given key/value pair. May be applied multiple times.
func WithFilter(key string, value any) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = map[string]any{}
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) { c.timeout = d }
}
