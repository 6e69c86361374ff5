// Package cli wires the watcher loops, the summarizer and the supporting
// commands behind a cobra command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kfrem/recapify/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "recapify",
	Short: "Passive activity recorder with daily LLM summaries",
	Long: `Recapify quietly records what you work on and writes a daily recap.

It watches configured directories for file changes, scrapes completed
commands from tmux panes, and once a day reduces both logs into a short
Markdown report through an LLM.

Quick start:
  recapify init          # write a default config
  recapify check         # verify the LLM provider answers
  recapify watch         # start recording (leave running)
  recapify summarize     # force a summary right now`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newSummarizeCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newDescribeCmd())
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
