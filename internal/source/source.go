// Package source loads documents from the configured ingestion sources.
//
// Sources are declared in a YAML file (config/doc_sources.yaml). Each
// source has an id, a type, and type-specific settings. Loaders fetch
// the raw material (web pages, PDFs, GitHub repos, crawled sites) and
// return plain-text Documents with provenance metadata.
package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// Source types accepted in the sources file.
const (
	TypeURL        = "url"
	TypeURLs       = "urls"
	TypePDFURL     = "pdf_url"
	TypePDFURLs    = "pdf_urls"
	TypeGitHubRepo = "github_repo"
	TypeWebsite    = "website"
)

// fetchTimeout bounds a single HTTP fetch (page or PDF download).
const fetchTimeout = 60 * time.Second

// Document is one unit of loaded text plus provenance metadata.
// Metadata always carries "source_id" and "source_type"; loaders add
// type-specific keys (source_url, page, file_path, file_extension).
type Document struct {
	Content  string
	Metadata map[string]any
}

// Config describes one entry in the sources file. Fields are a union
// over all source types; loaders read the ones relevant to their type.
type Config struct {
	ID   string `mapstructure:"id"`
	Type string `mapstructure:"type"`

	// url / urls / pdf_url / pdf_urls / website
	URL  string   `mapstructure:"url"`
	URLs []string `mapstructure:"urls"`

	// github_repo
	Repo           string   `mapstructure:"repo"`   // "owner/name"
	Branch         string   `mapstructure:"branch"` // default "main"
	IncludePaths   []string `mapstructure:"include_paths"`
	FileExtensions []string `mapstructure:"file_extensions"` // default .md,.rst,.txt
	Token          string   `mapstructure:"token"`           // falls back to GITHUB_PERSONAL_ACCESS_TOKEN

	// website
	MaxPages int `mapstructure:"max_pages"` // default 25
}

// LoadConfigs reads the sources file and returns the declared sources.
// Every source must have a non-empty id and a known type.
func LoadConfigs(path string) ([]Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading sources file %s: %w", path, err)
	}

	var file struct {
		Sources []Config `mapstructure:"sources"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parsing sources file %s: %w", path, err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s declares no sources", path)
	}

	for i, src := range file.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("source %d: missing id", i)
		}
		if err := validateType(src); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
	}

	return file.Sources, nil
}

func validateType(src Config) error {
	switch src.Type {
	case TypeURL, TypePDFURL:
		if src.URL == "" {
			return fmt.Errorf("type %q requires url", src.Type)
		}
	case TypeURLs, TypePDFURLs:
		if len(src.URLs) == 0 {
			return fmt.Errorf("type %q requires urls", src.Type)
		}
	case TypeGitHubRepo:
		if src.Repo == "" {
			return fmt.Errorf("type %q requires repo", src.Type)
		}
	case TypeWebsite:
		if src.URL == "" {
			return fmt.Errorf("type %q requires url", src.Type)
		}
	case "":
		return fmt.Errorf("missing type")
	default:
		return fmt.Errorf("unknown type %q", src.Type)
	}
	return nil
}

// Loader fetches documents for all configured sources.
type Loader struct {
	client *http.Client
	logger log.Logger

	// Overridable in tests.
	githubAPI string
	githubRaw string
}

// NewLoader creates a Loader. A nil logger discards log output.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{
		client:    &http.Client{Timeout: fetchTimeout},
		logger:    logger,
		githubAPI: "https://api.github.com",
		githubRaw: "https://raw.githubusercontent.com",
	}
}

// Load fetches documents for a single source, dispatching by type.
func (l *Loader) Load(ctx context.Context, src Config) ([]Document, error) {
	l.logger.Info("loading source", "id", src.ID, "type", src.Type)

	var (
		docs []Document
		err  error
	)
	switch src.Type {
	case TypeURL:
		docs, err = l.loadWebPages(ctx, src, []string{src.URL})
	case TypeURLs:
		docs, err = l.loadWebPages(ctx, src, src.URLs)
	case TypePDFURL:
		docs, err = l.loadPDFs(ctx, src, []string{src.URL})
	case TypePDFURLs:
		docs, err = l.loadPDFs(ctx, src, src.URLs)
	case TypeGitHubRepo:
		docs, err = l.loadGitHubRepo(ctx, src)
	case TypeWebsite:
		docs, err = l.crawlWebsite(ctx, src)
	default:
		return nil, fmt.Errorf("source %q: unknown type %q", src.ID, src.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", src.ID, err)
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source_id"] = src.ID
		docs[i].Metadata["source_type"] = src.Type
	}

	l.logger.Info("source loaded", "id", src.ID, "documents", len(docs))
	return docs, nil
}

// LoadAll fetches documents for every source in order. Any failure
// aborts the run; partial ingestion of a broken source list is worse
// than a clean retry.
func (l *Loader) LoadAll(ctx context.Context, sources []Config) ([]Document, error) {
	var all []Document
	for _, src := range sources {
		docs, err := l.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	return all, nil
}
