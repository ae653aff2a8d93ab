package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

func crawlTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	page := func(title, body, links string) string {
		return fmt.Sprintf(`<html><head><title>%s</title></head>
<body><main><p>%s</p></main>%s</body></html>`, title, body, links)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page("Home",
			"Welcome to the documentation site with plenty of words on the landing page to index properly.",
			`<a href="/guide">guide</a> <a href="/guide#section">dup</a> <a href="mailto:x@y.z">mail</a>`))
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Guide",
			"The guide explains how queries are embedded and matched against stored document vectors.",
			`<a href="/">home</a>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlWebsite(t *testing.T) {
	srv := crawlTestServer(t)

	loader := NewLoader(log.NewNop())
	docs, err := loader.Load(context.Background(), Config{
		ID:       "docs",
		Type:     TypeWebsite,
		URL:      srv.URL,
		MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	urls := map[string]bool{}
	for _, d := range docs {
		urls[d.Metadata["source_url"].(string)] = true
		assert.Equal(t, "docs", d.Metadata["source_id"])
		assert.Equal(t, TypeWebsite, d.Metadata["source_type"])
	}
	assert.True(t, urls[srv.URL+"/"])
	assert.True(t, urls[srv.URL+"/guide"])
}

// TestCrawlWebsiteLinkChain crawls a chain of pages that link onward
// and back to the start. Following a link re-enters page handling on
// the same goroutine, so the crawl must finish without deadlocking
// and without revisiting pages.
func TestCrawlWebsiteLinkChain(t *testing.T) {
	page := func(title, body, links string) string {
		return fmt.Sprintf(`<html><head><title>%s</title></head>
<body><main><p>%s</p></main>%s</body></html>`, title, body, links)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page("Home",
			"The landing page introduces the project and links onward to the installation instructions.",
			`<a href="/install">install</a>`))
	})
	mux.HandleFunc("/install", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Install",
			"Installation pulls the container image and applies the manifests to a running cluster.",
			`<a href="/usage">usage</a> <a href="/">home</a>`))
	})
	mux.HandleFunc("/usage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Usage",
			"Usage covers ingesting sources and asking questions against the indexed documents.",
			`<a href="/">home</a> <a href="/install">install</a>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loader := NewLoader(log.NewNop())
	docs, err := loader.Load(ctx, Config{
		ID:       "docs",
		Type:     TypeWebsite,
		URL:      srv.URL,
		MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	urls := map[string]bool{}
	for _, d := range docs {
		urls[d.Metadata["source_url"].(string)] = true
	}
	assert.True(t, urls[srv.URL+"/"])
	assert.True(t, urls[srv.URL+"/install"])
	assert.True(t, urls[srv.URL+"/usage"])
}

func TestCrawlWebsiteMaxPages(t *testing.T) {
	srv := crawlTestServer(t)

	loader := NewLoader(log.NewNop())
	docs, err := loader.Load(context.Background(), Config{
		ID:       "docs",
		Type:     TypeWebsite,
		URL:      srv.URL,
		MaxPages: 1,
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCrawlWebsiteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	loader := NewLoader(log.NewNop())
	_, err := loader.Load(context.Background(), Config{
		ID:   "docs",
		Type: TypeWebsite,
		URL:  srv.URL,
	})
	assert.Error(t, err)
}
