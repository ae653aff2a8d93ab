package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cesarhb/kb-engine-playground/internal/app"
	"github.com/cesarhb/kb-engine-playground/internal/config"
	"github.com/cesarhb/kb-engine-playground/internal/knowledge"
	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// defaultSearchK is how many results the search command prints. The
// chat retriever uses its own, smaller default.
const defaultSearchK = 5

// searchOptions holds the parsed search command line.
type searchOptions struct {
	topK       int
	collection string
	query      string
}

// parseSearchFlags parses the arguments after the search subcommand.
func parseSearchFlags(args []string) (*searchOptions, error) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	topK := fs.Int("k", defaultSearchK, "Number of results to return")
	collection := fs.String("collection", "", "Documents table name (overrides config)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing search flags: %w", err)
	}
	if *topK < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", *topK)
	}
	return &searchOptions{
		topK:       *topK,
		collection: *collection,
		query:      strings.TrimSpace(strings.Join(fs.Args(), " ")),
	}, nil
}

// runSearch runs a similarity search from the command line. Without a
// query it reports the document count, which doubles as a connectivity
// check after ingest.
func runSearch(logger log.Logger) error {
	opts, err := parseSearchFlags(argsAfterCommand())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.collection != "" {
		cfg.Collection = opts.collection
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer closeApp(a, logger)

	if opts.query == "" {
		count, err := a.Knowledge.Count(ctx, nil)
		if err != nil {
			return fmt.Errorf("counting documents: %w", err)
		}
		fmt.Printf("Knowledge base %q holds %d documents\n", cfg.Collection, count)
		return nil
	}

	results, err := a.Knowledge.Search(ctx, opts.query, knowledge.WithTopK(opts.topK))
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching documents found")
		return nil
	}

	for i, res := range results {
		fmt.Printf("[%d] similarity=%.3f source=%v\n", i+1, res.Similarity, res.Metadata["source_id"])
		fmt.Println(indent(truncate(res.Content, 400), "    "))
	}
	return nil
}

// truncate cuts s at limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
