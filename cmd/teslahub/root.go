package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	profilePath  string
	serverURL    string
	timeZone     string
	defaultsFile string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "teslahub",
	Short: "Bookmark launcher for in-car browsers",
	Long: `teslahub keeps a per-profile list of web app bookmarks and the relay
that lets a phone add to it by scanning a QR code.

Run "teslahub serve" for the relay server. The "apps" commands edit a local
profile the same way a browser tab does; several of them can run against
one profile at once and stay in sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", defaultProfilePath(), "Profile file holding the bookmarks")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("TESLAHUB_SERVER"), "teslahub server URL (relay and default bookmarks)")
	rootCmd.PersistentFlags().StringVar(&timeZone, "tz", "", "IANA time zone used to pick the default region (default: local zone)")
	rootCmd.PersistentFlags().StringVar(&defaultsFile, "defaults", "", "Local defaults file, used instead of the server's")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "teslahub-profile.json"
	}
	return filepath.Join(dir, "teslahub", "profile.json")
}
