package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/teslahub/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stale relay sessions once and exit",
	Long: `Run a single cleanup pass over the configured relay backend. Sessions
created before TESLAHUB_SWEEP_HORIZON are deleted. Meant for cron.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.RunSweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleaned up %d old relay sessions\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
