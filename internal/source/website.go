package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"
)

const defaultMaxPages = 25

// crawlWebsite crawls a site starting at src.URL, staying within the
// start URL's domain, and extracts readable text from up to
// src.MaxPages pages.
func (l *Loader) crawlWebsite(ctx context.Context, src Config) ([]Document, error) {
	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	startURL, err := normalizeURL(src.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	parsed, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	c := colly.NewCollector(
		colly.AllowedDomains(host, "www."+host),
		colly.MaxDepth(3),
		colly.UserAgent(userAgent),
	)
	c.SetRequestTimeout(fetchTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       500 * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configuring crawl rate limit: %w", err)
	}

	var (
		mu      sync.Mutex
		docs    []Document
		visited = map[string]bool{}
	)

	c.OnRequest(func(r *colly.Request) {
		// Honor caller cancellation between page fetches.
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	// recordPage stores the page text and returns the candidate links
	// to follow, all under the lock.
	recordPage := func(e *colly.HTMLElement) []string {
		mu.Lock()
		defer mu.Unlock()

		if len(docs) >= maxPages {
			return nil
		}

		pageURL, err := normalizeURL(e.Request.URL.String())
		if err != nil || visited[pageURL] {
			return nil
		}
		visited[pageURL] = true

		title := strings.TrimSpace(e.DOM.Find("title").Text())
		text := extractCrawledText(e.DOM)
		if len(strings.Fields(text)) >= 10 {
			docs = append(docs, Document{
				Content: text,
				Metadata: map[string]any{
					"source_url": pageURL,
					"title":      title,
				},
			})
		}

		if len(docs) >= maxPages {
			return nil
		}

		var links []string
		e.DOM.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" || strings.HasPrefix(href, "#") {
				return
			}
			lower := strings.ToLower(href)
			if strings.HasPrefix(lower, "javascript:") ||
				strings.HasPrefix(lower, "mailto:") ||
				strings.HasPrefix(lower, "tel:") {
				return
			}

			abs := e.Request.AbsoluteURL(href)
			if abs == "" {
				return
			}
			next, err := normalizeURL(abs)
			if err != nil || visited[next] || !crawlableURL(next) {
				return
			}
			links = append(links, next)
		})
		return links
	}

	c.OnHTML("html", func(e *colly.HTMLElement) {
		// Visit must run with the lock released: the collector is
		// synchronous, so Visit re-enters this callback on the same
		// goroutine before returning, and sync.Mutex is not reentrant.
		for _, next := range recordPage(e) {
			mu.Lock()
			full := len(docs) >= maxPages
			mu.Unlock()
			if full {
				return
			}
			// Errors here mean off-domain, depth limit, or duplicate.
			_ = e.Request.Visit(next)
		}
	})

	var crawlErr error
	c.OnError(func(r *colly.Response, err error) {
		pageURL, _ := normalizeURL(r.Request.URL.String())
		if pageURL == startURL {
			crawlErr = fmt.Errorf("crawling %s: %w", startURL, err)
			return
		}
		l.logger.Warn("crawl page failed, continuing",
			"url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("crawling %s: %w", startURL, err)
	}
	c.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if crawlErr != nil && len(docs) == 0 {
		return nil, crawlErr
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("crawl of %s produced no pages", startURL)
	}
	return docs, nil
}

// extractCrawledText prefers semantic content containers and falls
// back to the whole body.
func extractCrawledText(sel *goquery.Selection) string {
	doc := sel.Clone()
	doc.Find("script, style, nav, footer, header, aside").Remove()

	for _, selector := range []string{"main", "article", "[role='main']", "#content", ".content"} {
		if text := collapseWhitespace(doc.Find(selector).Text()); len(text) > 100 {
			return text
		}
	}
	return collapseWhitespace(doc.Find("body").Text())
}

// normalizeURL canonicalizes a URL for duplicate detection: drop the
// fragment, lowercase scheme and host, strip trailing slashes.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// crawlableURL filters out asset and feed URLs that carry no prose.
func crawlableURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	pathLower := strings.ToLower(parsed.Path)
	for _, ext := range []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".xml", ".zip"} {
		if strings.HasSuffix(pathLower, ext) {
			return false
		}
	}
	for _, pattern := range []string{"/feed/", "/rss/", "/atom/", "/api/"} {
		if strings.Contains(pathLower, pattern) {
			return false
		}
	}
	return true
}
