package main

import (
	"fmt"
	"os"

	"github.com/rip-dev/rip/cmd/rip/commands"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rip",
	Short: "Continuity OS for LLM agent sessions",
	Long: `
  ┬─┐┬┌─┐
  ├┬┘│├─┘
  ┴└─┴┴
  Continuity OS

  rip treats an append-only event log as the sole source of truth for an
  agent's conversation, runs, and compaction history. Provider-side state
  is a rotatable cache, never ground truth.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.SetVersionTemplate("rip version {{.Version}}\n")

	rootCmd.PersistentFlags().StringP("config", "c", "rip.yaml", "Path to config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the store directory (default: config data_dir)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringP("output", "o", "auto", "Output format: auto, json, text")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Include real-time tool activity in logs")

	rootCmd.AddCommand(commands.NewValidateCmd())
	rootCmd.AddCommand(commands.NewPostCmd())
	rootCmd.AddCommand(commands.NewRunCmd())
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewLogsCmd())
	rootCmd.AddCommand(commands.NewCompactCmd())
	rootCmd.AddCommand(commands.NewTagCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewBranchCmd())
	rootCmd.AddCommand(commands.NewHandoffCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
