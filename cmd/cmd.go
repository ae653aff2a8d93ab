// Package cmd provides the kb-engine CLI commands.
//
// Commands:
//   - ingest: fetch configured sources, chunk, embed, and index
//   - search: similarity search against the knowledge base
//   - cli: one-shot question answering on the terminal
//   - serve: HTTP API server (POST /chat, GET /search)
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// Execute is the main entry point for the kb-engine CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ingest":
		return runIngest(logger)
	case "search":
		return runSearch(logger)
	case "cli":
		return runCLI(logger)
	case "serve":
		return runServe(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("kb-engine - documentation knowledge base with retrieval-augmented chat")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kb-engine ingest [-sources path] [-collection name]   Fetch, chunk, embed, and index sources")
	fmt.Println("  kb-engine search [-k n] [-collection name] [query]    Search the knowledge base")
	fmt.Println("  kb-engine cli [-collection name] <question>           Ask one question, print the answer")
	fmt.Println("  kb-engine serve [addr]                                Start HTTP API server (default: 127.0.0.1:8123)")
	fmt.Println("  kb-engine --version                                   Show version information")
	fmt.Println("  kb-engine --help                                      Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL       PostgreSQL connection URL")
	fmt.Println("  KB_PROVIDER        Model provider: ollama (default), openai, gemini")
	fmt.Println("  OLLAMA_BASE_URL    Ollama server address")
	fmt.Println("  OPENAI_API_KEY     Required for the openai provider")
	fmt.Println("  GEMINI_API_KEY     Required for the gemini provider")
	fmt.Println("  DEBUG              Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/cesarhb/kb-engine-playground")
}
