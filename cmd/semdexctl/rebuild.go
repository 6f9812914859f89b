package main

import (
	"github.com/spf13/cobra"

	"github.com/semdex-io/semdex/pkg/sdk"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the server's index from its corpus store",
	Long: `Trigger a full rebuild on a running server.

The server regenerates the vector index from its corpus database and swaps
it in atomically; queries keep being served from the old index until the
new one is complete.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := sdk.New(serverURL).Reindex(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}
