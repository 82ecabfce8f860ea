// Package cmd implements the portfolio command line.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Personal portfolio site with live section navigation",
	Long: `Serves a single-page portfolio. Each open page keeps a navigation state
(active section, menu, theme and scroll position) on the server, driven by
scroll updates the browser sends over a websocket.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path (optional)")
}
