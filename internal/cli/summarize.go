package cli

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/summarizer"
)

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the recorded activity right now",
		Long: `Runs one summarization pass immediately, regardless of the configured
daily run time. Consumes both logs on success.`,
		RunE: runSummarize,
	}
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.Default()

	fileLog := eventlog.NewStore(cfg.Filesystem.OutputFile, log)
	commandLog := eventlog.NewStore(cfg.Tmux.OutputFile, log)

	p, err := newPipeline(cfg, fileLog, commandLog, log)
	if err != nil {
		return err
	}

	switch err := p.RunOnce(cmd.Context()); {
	case err == nil:
		banner(cmd.OutOrStdout(), "Summary written to "+p.ArtifactPath(time.Now()))
		return nil
	case errors.Is(err, summarizer.ErrNoEvents):
		banner(cmd.OutOrStdout(), "Nothing recorded yet, no summary written.")
		return nil
	default:
		return err
	}
}
