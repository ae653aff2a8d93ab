package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps downloaded PDFs to keep extraction in memory bounds.
const maxPDFBytes = 100 << 20

// loadPDFs downloads each PDF and extracts text page by page. One
// Document per page, so page numbers survive into chunk metadata.
func (l *Loader) loadPDFs(ctx context.Context, src Config, urls []string) ([]Document, error) {
	var docs []Document
	for _, pdfURL := range urls {
		pageDocs, err := l.loadPDF(ctx, pdfURL)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", pdfURL, err)
		}
		docs = append(docs, pageDocs...)
	}
	return docs, nil
}

func (l *Loader) loadPDF(ctx context.Context, pdfURL string) ([]Document, error) {
	path, size, err := l.downloadToTemp(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening downloaded PDF: %w", err)
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("parsing PDF: %w", err)
	}

	numPages := reader.NumPage()
	docs := make([]Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			l.logger.Warn("failed to extract PDF page, skipping",
				"url", pdfURL, "page", i, "error", err)
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, Document{
			Content: text,
			Metadata: map[string]any{
				"source_url": pdfURL,
				"page":       i,
			},
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no text extracted from %s (%d pages)", pdfURL, numPages)
	}
	return docs, nil
}

// downloadToTemp streams the PDF to a temp file. pdf.NewReader needs a
// ReadSeeker with a known size, which a response body is not.
func (l *Loader) downloadToTemp(ctx context.Context, pdfURL string) (path string, size int64, err error) {
	body, _, err := l.fetch(ctx, pdfURL)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "kb-engine-*.pdf")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}

	size, err = io.Copy(tmp, io.LimitReader(body, maxPDFBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("downloading PDF: %w", err)
	}
	if size > maxPDFBytes {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("PDF exceeds %d byte limit", maxPDFBytes)
	}

	return tmp.Name(), size, nil
}
