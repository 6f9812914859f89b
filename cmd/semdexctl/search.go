package main

import (
	"github.com/spf13/cobra"

	"github.com/semdex-io/semdex/pkg/sdk"
)

var (
	searchTopK      int
	searchThreshold float32
)

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "Maximum results to return")
	searchCmd.Flags().Float32Var(&searchThreshold, "threshold", 0, "Minimum similarity score in [0,1]")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a similarity search against a running server",
	Example: `  semdexctl search "attention mechanism transformer"
  semdexctl search --top-k 3 --threshold 0.4 "object detection"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	client := sdk.New(serverURL)

	resp, err := client.Search(cmd.Context(), sdk.SearchRequest{
		Query:     args[0],
		TopK:      searchTopK,
		Threshold: searchThreshold,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}
