// Package main provides the semdexctl CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/semdex-io/semdex/internal/version"
)

// serverURL is the base URL of a running semdex server, for the commands
// that go over HTTP.
var serverURL string

var rootCmd = &cobra.Command{
	Use:   "semdexctl",
	Short: "Operate a semdex semantic retrieval service",
	Long: `semdexctl manages the semdex semantic search service.

The ingest command works directly against the data directory: it acquires
papers from the configured sources, stores them in the corpus database,
builds the vector index, and persists it. The remaining commands talk to a
running server over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the semdex server")
	rootCmd.Version = version.String()
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
