// Command docintel is the entry point for the document intelligence service.
// It provides a CLI interface (via Cobra) for one-shot ingestion, questions,
// summaries and comparisons, and an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/54b3r/docintel-go/cmd/docintel/commands"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
