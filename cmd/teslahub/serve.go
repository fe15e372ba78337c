package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/teslahub/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay and defaults HTTP server",
	Long: `Run the HTTP server. Configuration comes from the environment (and a
.env file when present); see TESLAHUB_PUBLIC_URL and TESLAHUB_RELAY_BACKEND.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.New().Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
