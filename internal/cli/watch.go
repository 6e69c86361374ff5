package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kfrem/recapify/internal/config"
	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/fswatch"
	"github.com/kfrem/recapify/internal/llm"
	"github.com/kfrem/recapify/internal/summarizer"
	"github.com/kfrem/recapify/internal/tmux"
	"github.com/kfrem/recapify/internal/tmuxwatch"
)

func newWatchCmd() *cobra.Command {
	var summarizeOnExit bool
	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"record"},
		Short:   "Record activity and summarize once a day",
		Long: `Runs the three loops until interrupted: the file change watcher, the
tmux command scraper, and the daily summarization scheduler. Each loop is
independent; disabling a section in the config skips its loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, summarizeOnExit)
		},
	}
	cmd.Flags().BoolVar(&summarizeOnExit, "now", false, "summarize pending activity when the watcher stops")
	return cmd
}

func runWatch(cmd *cobra.Command, summarizeOnExit bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fileLog := eventlog.NewStore(cfg.Filesystem.OutputFile, log)
	commandLog := eventlog.NewStore(cfg.Tmux.OutputFile, log)

	var wg sync.WaitGroup

	if cfg.Filesystem.Enable {
		if len(cfg.Filesystem.Dirs) == 0 {
			log.Warn("no directory specified to watch")
		}
		w := newFileWatcher(cfg, fileLog, commandLog, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx, time.Duration(cfg.Filesystem.PollIntervalSec)*time.Second)
		}()
	}

	if cfg.Tmux.Enable {
		if !tmux.IsInstalled() {
			log.Warn("tmux not found, command recording will idle until panes appear")
		}
		w := newTmuxWatcher(cfg, commandLog, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx, time.Duration(cfg.Tmux.PollIntervalSec)*time.Second)
		}()
	}

	var pipeline *summarizer.Pipeline
	if cfg.Summarizer.Enable {
		p, err := newPipeline(cfg, fileLog, commandLog, log)
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
		pipeline = p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx, time.Duration(cfg.Summarizer.TickIntervalSec)*time.Second)
		}()
	}

	banner(cmd.OutOrStdout(), "recapify is recording. Ctrl+C to stop.")
	wg.Wait()

	if summarizeOnExit && pipeline != nil {
		// The watch context is already cancelled; the final run gets its own.
		switch err := pipeline.RunOnce(context.Background()); {
		case err == nil:
			log.Info("final summary written")
		case errors.Is(err, summarizer.ErrNoEvents):
			log.Info("no pending activity to summarize")
		default:
			log.Error("final summarization failed", "error", err)
		}
	}
	return nil
}

func newFileWatcher(cfg *config.Config, fileLog, commandLog *eventlog.Store, log *slog.Logger) *fswatch.Watcher {
	opts := []fswatch.Option{
		fswatch.WithFiletypes(cfg.Filesystem.IncludeFiletypes, cfg.Filesystem.ExcludeFiletypes),
		fswatch.WithExcludedPaths(func() []string {
			return []string{
				commandLog.Path,
				todaysArtifact(cfg.Summarizer.OutputDir),
			}
		}),
	}
	if cfg.Filesystem.MajorChangesOnly {
		opts = append(opts, fswatch.WithMajorChangesOnly(cfg.Filesystem.MinLinesChanged, cfg.Filesystem.SimilarityThreshold))
	}
	return fswatch.New(cfg.Filesystem.Dirs, fileLog, log, opts...)
}

func todaysArtifact(outputDir string) string {
	return filepath.Join(outputDir, time.Now().Format("2006-01-02")+".md")
}

func newTmuxWatcher(cfg *config.Config, commandLog *eventlog.Store, log *slog.Logger) *tmuxwatch.Watcher {
	client := tmux.NewClient()
	client.ScrollbackLines = cfg.Tmux.ScrollbackLines
	return tmuxwatch.New(client, tmuxwatch.DefaultExtractor(), commandLog, log,
		tmuxwatch.WithPanes(cfg.Tmux.Panes),
		tmuxwatch.WithFullCapture(cfg.Tmux.CaptureFullOutput),
	)
}

func newPipeline(cfg *config.Config, fileLog, commandLog *eventlog.Store, log *slog.Logger) (*summarizer.Pipeline, error) {
	client, err := llm.New(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		return nil, err
	}
	hour, minute, err := config.ParseClock(cfg.Summarizer.At)
	if err != nil {
		return nil, err
	}
	return summarizer.New(client, fileLog, commandLog, cfg.Summarizer.OutputDir, cfg.Summarizer.TokenLimit, log,
		summarizer.WithRunTime(hour, minute),
		summarizer.WithModelInfo(cfg.LLM.Provider, cfg.LLM.Model),
	), nil
}
