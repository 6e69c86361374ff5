// Package tmuxwatch polls tmux panes for completed commands and appends
// them to the command log.
package tmuxwatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/tmux"
)

// Capturer is the pane-content source. *tmux.Client satisfies it; tests
// inject fakes.
type Capturer interface {
	CapturePane(pane string) (string, error)
	ListPanes() ([]string, error)
}

// Extractor holds the prompt heuristics so they can be swapped in tests.
// The default wires through the tmux package functions.
type Extractor struct {
	IsFinished    func(content string) bool
	Command       func(content string) string
	CommandOutput func(content string) string
}

// DefaultExtractor wires the tmux prompt heuristics.
func DefaultExtractor() Extractor {
	return Extractor{
		IsFinished:    tmux.IsCommandFinished,
		Command:       tmux.CommandFromContent,
		CommandOutput: tmux.ExtractLastCommandOutput,
	}
}

// PaneState tracks what was last seen in one pane. It lives for the process
// lifetime only; a restart forgets all panes.
type PaneState struct {
	LastCommand          string
	WaitingForCompletion bool
}

// Completed is one finished command observed in a pane.
type Completed struct {
	Pane      string
	Command   string
	Output    string
	Timestamp time.Time
}

// Watcher polls tmux panes and records completed commands.
type Watcher struct {
	Client      Capturer
	Extract     Extractor
	Panes       []string // explicit pane list; empty enables discovery
	CaptureFull bool     // record the whole buffer instead of the last command's output

	store    *eventlog.Store
	states   map[string]*PaneState
	discover bool
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPanes pins the watcher to an explicit pane list, disabling discovery.
func WithPanes(panes []string) Option {
	return func(w *Watcher) {
		w.Panes = append([]string(nil), panes...)
		w.discover = len(w.Panes) == 0
	}
}

// WithFullCapture records the entire pane buffer for each completed command.
func WithFullCapture(full bool) Option {
	return func(w *Watcher) { w.CaptureFull = full }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New returns a watcher writing to store. A nil logger falls back to
// slog.Default.
func New(client Capturer, extract Extractor, store *eventlog.Store, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		Client:   client,
		Extract:  extract,
		store:    store,
		states:   make(map[string]*PaneState),
		discover: true,
		log:      logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CheckCompletedCommands polls every tracked pane once and returns the
// commands that completed since the previous poll. A command equal to the
// pane's last recorded one is not re-emitted.
func (w *Watcher) CheckCompletedCommands() []Completed {
	var completed []Completed

	for _, pane := range w.Panes {
		content, err := w.Client.CapturePane(pane)
		if err != nil {
			w.log.Debug("pane capture failed", "pane", pane, "error", err)
			continue
		}

		state, ok := w.states[pane]
		if !ok {
			state = &PaneState{}
			w.states[pane] = state
		}

		if !w.Extract.IsFinished(content) {
			state.WaitingForCompletion = true
			continue
		}

		command := w.Extract.Command(content)
		if command == "" || command == state.LastCommand {
			continue
		}

		output := content
		if !w.CaptureFull {
			output = w.Extract.CommandOutput(content)
		}
		if strings.TrimSpace(output) != "" {
			completed = append(completed, Completed{
				Pane:      pane,
				Command:   command,
				Output:    output,
				Timestamp: w.now(),
			})
		}

		state.LastCommand = command
		state.WaitingForCompletion = false
	}

	return completed
}

// RefreshPanes re-queries the active pane set and diffs it against the
// known one, logging additions and removals.
func (w *Watcher) RefreshPanes() {
	previous := make(map[string]bool, len(w.Panes))
	for _, p := range w.Panes {
		previous[p] = true
	}

	current, err := w.Client.ListPanes()
	if err != nil {
		w.log.Error("listing active panes failed", "error", err)
		current = nil
	}

	seen := make(map[string]bool, len(current))
	for _, p := range current {
		seen[p] = true
		if !previous[p] {
			w.log.Debug("new pane detected", "pane", p)
		}
	}
	for _, p := range w.Panes {
		if !seen[p] {
			w.log.Debug("pane closed", "pane", p)
		}
	}

	w.Panes = current
}

// record appends completed commands to the command log.
func (w *Watcher) record(commands []Completed) {
	if len(commands) == 0 {
		return
	}
	events := make([]eventlog.Event, 0, len(commands))
	for _, cmd := range commands {
		events = append(events, eventlog.Event{Command: &eventlog.CommandEvent{
			Timestamp: cmd.Timestamp.Unix(),
			Pane:      cmd.Pane,
			Command:   cmd.Command,
			Output:    splitOutputLines(cmd.Output),
		}})
		w.log.Debug("command completed", "pane", cmd.Pane, "command", cmd.Command)
	}
	if err := w.store.Append(events...); err != nil {
		w.log.Error("appending command events failed", "path", w.store.Path, "error", err)
	}
}

// Run polls panes until ctx is cancelled, sleeping interval between cycles.
// With pane discovery enabled, an empty pane set degrades into a backoff
// loop that retries until at least one pane reappears.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	if len(w.Panes) > 0 {
		w.log.Info("watching tmux panes", "panes", w.Panes)
	} else {
		w.log.Info("no panes configured, monitoring all tmux panes")
	}
	w.log.Debug("command log", "path", w.store.Path, "full_capture", w.CaptureFull)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if w.discover {
			w.RefreshPanes()
			if len(w.Panes) == 0 {
				w.log.Warn("no active tmux panes, backing off")
				if !w.waitForPanes(ctx, interval) {
					return
				}
			}
		}

		w.record(w.CheckCompletedCommands())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// waitForPanes retries the pane listing until one appears or ctx ends.
// Returns false when cancelled.
func (w *Watcher) waitForPanes(ctx context.Context, interval time.Duration) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		panes, err := w.Client.ListPanes()
		if err == nil && len(panes) > 0 {
			w.Panes = panes
			return true
		}
	}
}

func splitOutputLines(output string) []string {
	if output == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(output); i++ {
		if output[i] == '\n' {
			lines = append(lines, output[start:i])
			start = i + 1
		}
	}
	if start < len(output) {
		lines = append(lines, output[start:])
	}
	return lines
}
