package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/llm"
	"github.com/kfrem/recapify/internal/summarizer"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured LLM provider answers",
		Long: `Sends a synthetic activity log through the full summarization path
(chunking included) and reports whether the provider produced a reply.`,
		RunE: runCheck,
	}
}

// checkEvents builds a synthetic log large enough to exercise chunking at
// typical token limits.
func checkEvents() []eventlog.Event {
	events := make([]eventlog.Event, 0, 40)
	for i := 0; i < 20; i++ {
		events = append(events,
			eventlog.Event{File: &eventlog.FileEvent{
				Timestamp: int64(1700000000 + i*10),
				Changes: []eventlog.ChangeRecord{
					{
						File:   fmt.Sprintf("demo/file_%d.go", i),
						Status: eventlog.StatusModified,
						Diff: []string{
							"--- a/demo/file.go",
							"+++ b/demo/file.go",
							"@@ -1,2 +1,3 @@",
							" package demo",
							"+" + strings.Repeat("// synthetic change ", 10),
						},
					},
				},
			}},
			eventlog.Event{Command: &eventlog.CommandEvent{
				Timestamp: int64(1700000005 + i*10),
				Pane:      "demo:0.0",
				Command:   "go test ./...",
				Output:    []string{"ok", strings.Repeat("PASS ", 20)},
			}},
		)
	}
	return events
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.Default()

	log.Info("checking LLM connectivity", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	if cfg.LLM.APIKey == "" {
		log.Warn("no API key configured")
	}

	client, err := llm.New(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		return err
	}

	serialized, err := eventlog.MarshalEvents(checkEvents())
	if err != nil {
		return err
	}

	p := summarizer.New(client, nil, nil, "", cfg.Summarizer.TokenLimit, log,
		summarizer.WithModelInfo(cfg.LLM.Provider, cfg.LLM.Model),
	)
	reply, err := p.Summarize(cmd.Context(), serialized)
	if err != nil {
		failure(cmd.OutOrStdout(), "Provider check failed: "+err.Error())
		return err
	}
	if strings.TrimSpace(reply) == "" {
		failure(cmd.OutOrStdout(), "Provider answered with an empty reply.")
		return fmt.Errorf("empty reply from %s", cfg.LLM.Provider)
	}

	success(cmd.OutOrStdout(), "Everything seems fine!")
	return nil
}
