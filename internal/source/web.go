package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

const userAgent = "kb-engine/1.0 (+https://github.com/cesarhb/kb-engine-playground)"

// loadWebPages fetches each URL and extracts its readable text.
func (l *Loader) loadWebPages(ctx context.Context, src Config, urls []string) ([]Document, error) {
	docs := make([]Document, 0, len(urls))
	for _, pageURL := range urls {
		doc, err := l.loadWebPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *Loader) loadWebPage(ctx context.Context, pageURL string) (Document, error) {
	body, contentType, err := l.fetch(ctx, pageURL)
	if err != nil {
		return Document{}, err
	}
	defer body.Close()

	// Decode to UTF-8 before parsing; charset sniffs the meta tag and
	// the Content-Type header.
	utf8Body, err := charset.NewReader(body, contentType)
	if err != nil {
		return Document{}, fmt.Errorf("decoding response body: %w", err)
	}

	raw, err := io.ReadAll(utf8Body)
	if err != nil {
		return Document{}, fmt.Errorf("reading response body: %w", err)
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Document{}, fmt.Errorf("parsing URL: %w", err)
	}

	title, text := extractReadableText(raw, parsedURL)
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("no textual content extracted from %s", pageURL)
	}

	return Document{
		Content: text,
		Metadata: map[string]any{
			"source_url": pageURL,
			"title":      title,
		},
	}, nil
}

// extractReadableText runs readability extraction and falls back to a
// goquery text dump when the page has no article-like structure
// (navigation-heavy index pages, API references).
func extractReadableText(raw []byte, pageURL *url.URL) (title, text string) {
	article, err := readability.FromReader(strings.NewReader(string(raw)), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.Title, article.TextContent
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").Text())

	doc.Find("script, style, nav, footer, header, aside").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		return title, strings.TrimSpace(doc.Text())
	}

	return title, collapseWhitespace(body.Text())
}

// collapseWhitespace trims every line and drops blank lines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// fetch issues a GET with the loader's timeout and returns the body
// stream plus the Content-Type header.
func (l *Loader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
