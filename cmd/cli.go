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
	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// runCLI answers a single question on the terminal. The model drives
// retrieval through the search tool.
func runCLI(logger log.Logger) error {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	collection := fs.String("collection", "", "Documents table name (overrides config)")
	if err := fs.Parse(argsAfterCommand()); err != nil {
		return fmt.Errorf("parsing cli flags: %w", err)
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: %s cli <question>", os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *collection != "" {
		cfg.Collection = *collection
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer closeApp(a, logger)

	answer, err := a.Agent.AnswerWithTools(ctx, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer)
	return nil
}
