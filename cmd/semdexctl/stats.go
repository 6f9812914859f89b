package main

import (
	"github.com/spf13/cobra"

	"github.com/semdex-io/semdex/pkg/sdk"
)

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := sdk.New(serverURL).Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check health of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := sdk.New(serverURL).Health(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}
