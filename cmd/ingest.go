package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cesarhb/kb-engine-playground/internal/app"
	"github.com/cesarhb/kb-engine-playground/internal/config"
	"github.com/cesarhb/kb-engine-playground/internal/ingest"
	"github.com/cesarhb/kb-engine-playground/internal/log"
	"github.com/cesarhb/kb-engine-playground/internal/source"
)

// timeRounding trims duration noise from command output.
const timeRounding = 10 * time.Millisecond

// runIngest fetches all configured sources, chunks and embeds their
// content, and indexes the chunks into the documents table.
func runIngest(logger log.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	sourcesPath := fs.String("sources", "", "Path to the sources YAML file (overrides config)")
	collection := fs.String("collection", "", "Documents table name (overrides config)")
	if err := fs.Parse(argsAfterCommand()); err != nil {
		return fmt.Errorf("parsing ingest flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *sourcesPath != "" {
		cfg.SourcesFile = *sourcesPath
	}
	if *collection != "" {
		cfg.Collection = *collection
	}

	sources, err := source.LoadConfigs(cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer closeApp(a, logger)

	pipeline := ingest.NewPipeline(
		source.NewLoader(logger),
		a.DocStore,
		cfg.EmbedMaxChars,
		cfg.ResolvedChunkOverlap(),
		logger,
	)

	stats, err := pipeline.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("running ingest pipeline: %w", err)
	}

	fmt.Printf("Ingested %d sources: %d documents, %d chunks in %d batches (%s)\n",
		stats.Sources, stats.Documents, stats.Chunks, stats.Batches, stats.Duration.Round(timeRounding))
	return nil
}

// argsAfterCommand returns os.Args past the subcommand name.
func argsAfterCommand() []string {
	if len(os.Args) > 2 {
		return os.Args[2:]
	}
	return nil
}

// closeApp closes the app and logs instead of failing the command.
func closeApp(a *app.App, logger log.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
