package main

import (
	"github.com/spf13/cobra"

	"github.com/semdex-io/semdex/pkg/sdk"
)

var qaTopK int

func init() {
	qaCmd.Flags().IntVar(&qaTopK, "top-k", 0, "Documents to retrieve for context (server default when 0)")
	rootCmd.AddCommand(qaCmd)
}

var qaCmd = &cobra.Command{
	Use:   "qa <question>",
	Short: "Ask a question and get an extractive answer",
	Long: `Ask a question against a running server.

The answer is extractive: sentences selected from the retrieved documents,
never generated text. When no indexed document is relevant enough the
server returns a fixed insufficient-context answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runQA,
}

func runQA(cmd *cobra.Command, args []string) error {
	client := sdk.New(serverURL)

	resp, err := client.QA(cmd.Context(), sdk.QARequest{Query: args[0], TopK: qaTopK})
	if err != nil {
		return err
	}
	return printJSON(resp)
}
