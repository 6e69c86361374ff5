// Package summarizer turns the accumulated activity logs into one dated
// Markdown report per day.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kfrem/recapify/internal/chunker"
	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/prompts"
	"github.com/kfrem/recapify/internal/util"
)

// ErrNoEvents is returned when both logs are empty at run time. The run is
// retried on the next tick rather than marked done for the day.
var ErrNoEvents = errors.New("no events to summarize")

// Completer is the LLM surface the pipeline needs. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Pipeline merges the two logs, reduces them through the LLM and writes the
// dated report.
type Pipeline struct {
	FileLog    *eventlog.Store
	CommandLog *eventlog.Store
	OutputDir  string
	TokenLimit int
	Provider   string
	Model      string

	completer Completer
	runHour   int
	runMinute int

	// lastRunDay guards against summarizing the same day twice. It is
	// in-memory only: a restart forgets it and the day can run again.
	lastRunDay time.Time

	log *slog.Logger
	now func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunTime sets the daily time-of-day after which a run is due.
func WithRunTime(hour, minute int) Option {
	return func(p *Pipeline) {
		p.runHour = hour
		p.runMinute = minute
	}
}

// WithModelInfo records provider and model names in the report front matter.
func WithModelInfo(provider, model string) Option {
	return func(p *Pipeline) {
		p.Provider = provider
		p.Model = model
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline reading fileLog and commandLog and writing reports
// under outputDir. A nil logger falls back to slog.Default.
func New(completer Completer, fileLog, commandLog *eventlog.Store, outputDir string, tokenLimit int, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		FileLog:    fileLog,
		CommandLog: commandLog,
		OutputDir:  outputDir,
		TokenLimit: tokenLimit,
		completer:  completer,
		runHour:    19,
		log:        logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRun reports whether a summarization run is due at the given moment:
// past the configured time of day and not yet run today.
func (p *Pipeline) ShouldRun(now time.Time) bool {
	due := time.Date(now.Year(), now.Month(), now.Day(), p.runHour, p.runMinute, 0, 0, now.Location())
	if now.Before(due) {
		return false
	}
	return dateOf(now).After(p.lastRunDay)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// summarizeChunks reduces the chunks to one report. A single chunk takes one
// call; multiple chunks seed an accumulator and fold each further chunk in.
func (p *Pipeline) summarizeChunks(ctx context.Context, chunks []string) (string, error) {
	single, err := prompts.Load("single")
	if err != nil {
		return "", err
	}

	summary, err := p.completer.Complete(ctx, single, chunks[0])
	if err != nil {
		return "", err
	}
	if len(chunks) == 1 {
		return summary, nil
	}

	many, err := prompts.Load("many")
	if err != nil {
		return "", err
	}
	for i, chunk := range chunks[1:] {
		p.log.Debug("reducing chunk", "chunk", i+2, "total", len(chunks))
		summary, err = p.completer.Complete(ctx, many, summary+"\n\n"+chunk)
		if err != nil {
			return "", err
		}
	}
	return summary, nil
}

// Summarize runs the chunked reduction over already-serialized events.
func (p *Pipeline) Summarize(ctx context.Context, serialized string) (string, error) {
	chunks, err := chunker.Split(serialized, p.TokenLimit)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", ErrNoEvents
	}
	return p.summarizeChunks(ctx, chunks)
}

// frontMatter is the metadata block prepended to each report.
type frontMatter struct {
	GeneratedAt string `yaml:"generated_at"`
	Provider    string `yaml:"provider,omitempty"`
	Model       string `yaml:"model,omitempty"`
	Events      int    `yaml:"events"`
	Chunks      int    `yaml:"chunks"`
}

// ArtifactPath returns the report path for the given day.
func (p *Pipeline) ArtifactPath(day time.Time) string {
	return filepath.Join(p.OutputDir, day.Format("2006-01-02")+".md")
}

// RunOnce performs one full summarization run: merge, chunk, reduce, write
// the dated artifact and truncate the consumed logs. On any LLM failure the
// logs are left untouched so the events roll into the next attempt. An empty
// event set returns ErrNoEvents without marking the day done.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	now := p.now()

	events := eventlog.Merge(p.FileLog.Read(), p.CommandLog.Read())
	if len(events) == 0 {
		return ErrNoEvents
	}

	serialized, err := eventlog.MarshalEvents(events)
	if err != nil {
		return fmt.Errorf("serializing events: %w", err)
	}
	chunks, err := chunker.Split(serialized, p.TokenLimit)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ErrNoEvents
	}

	p.log.Info("generating summary", "events", len(events), "chunks", len(chunks), "model", p.Model)

	summary, err := p.summarizeChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("summarization failed, logs kept: %w", err)
	}

	head, err := yaml.Marshal(frontMatter{
		GeneratedAt: now.Format(time.RFC3339),
		Provider:    p.Provider,
		Model:       p.Model,
		Events:      len(events),
		Chunks:      len(chunks),
	})
	if err != nil {
		return fmt.Errorf("encoding front matter: %w", err)
	}

	out := p.ArtifactPath(now)
	report := "---\n" + string(head) + "---\n\n" + strings.TrimSpace(summary) + "\n"
	if err := util.AtomicWriteFile(out, []byte(report), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	p.log.Info("summary saved", "path", out)

	p.lastRunDay = dateOf(now)

	if err := p.FileLog.Truncate(); err != nil {
		p.log.Error("truncating file log failed", "path", p.FileLog.Path, "error", err)
	}
	if err := p.CommandLog.Truncate(); err != nil {
		p.log.Error("truncating command log failed", "path", p.CommandLog.Path, "error", err)
	}
	return nil
}

// Run ticks until ctx is cancelled, firing RunOnce when a daily run is due.
func (p *Pipeline) Run(ctx context.Context, tick time.Duration) {
	p.log.Info("summarizer scheduled", "at", fmt.Sprintf("%02d:%02d", p.runHour, p.runMinute), "output_dir", p.OutputDir)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if p.ShouldRun(p.now()) {
			switch err := p.RunOnce(ctx); {
			case err == nil:
			case errors.Is(err, ErrNoEvents):
				p.log.Warn("no activity to summarize yet")
			default:
				p.log.Error("summarization run failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
