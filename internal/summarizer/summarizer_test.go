package summarizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kfrem/recapify/internal/eventlog"
)

// fakeCompleter records calls and replies from a scripted queue.
type fakeCompleter struct {
	calls   []call
	replies []string
	err     error
	failAt  int // 1-based call index that fails; 0 disables
}

type call struct {
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, call{system, user})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return fmt.Sprintf("summary %d", len(f.calls)), nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, 8, 23, 19, 30, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, completer Completer, tokenLimit int) (*Pipeline, *eventlog.Store, *eventlog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	fileLog := eventlog.NewStore(filepath.Join(dir, "changes.json"), nil)
	cmdLog := eventlog.NewStore(filepath.Join(dir, "commands.json"), nil)
	outDir := filepath.Join(dir, "summaries")
	p := New(completer, fileLog, cmdLog, outDir, tokenLimit, nil,
		WithRunTime(19, 0),
		WithModelInfo("ollama", "llama3.2"),
		WithClock(fixedClock(testNow)),
	)
	return p, fileLog, cmdLog, outDir
}

func seedLogs(t *testing.T, fileLog, cmdLog *eventlog.Store) {
	t.Helper()
	err := fileLog.Append(eventlog.Event{File: &eventlog.FileEvent{
		Timestamp: 1700000100,
		Changes: []eventlog.ChangeRecord{
			{File: "proj/main.go", Status: eventlog.StatusModified, Diff: []string{"+x"}},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	err = cmdLog.Append(eventlog.Event{Command: &eventlog.CommandEvent{
		Timestamp: 1700000050,
		Pane:      "dev:1.0",
		Command:   "make test",
		Output:    []string{"ok"},
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestShouldRun(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, &fakeCompleter{}, 1000)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before run hour", time.Date(2026, 8, 23, 18, 59, 0, 0, time.UTC), false},
		{"exactly run hour", time.Date(2026, 8, 23, 19, 0, 0, 0, time.UTC), true},
		{"after run hour", time.Date(2026, 8, 23, 23, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.ShouldRun(tc.at); got != tc.want {
				t.Errorf("ShouldRun(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}

	t.Run("not twice on the same day", func(t *testing.T) {
		p.lastRunDay = time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
		if p.ShouldRun(time.Date(2026, 8, 23, 22, 0, 0, 0, time.UTC)) {
			t.Error("ran twice in one day")
		}
		if !p.ShouldRun(time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC)) {
			t.Error("next day blocked")
		}
	})
}

func TestRunOnceSingleChunk(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"the daily report"}}
	p, fileLog, cmdLog, outDir := newTestPipeline(t, fake, 1_000_000)
	seedLogs(t, fileLog, cmdLog)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("LLM calls = %d, want 1", len(fake.calls))
	}
	// Merged input is ordered by timestamp: the command event comes first.
	cmdPos := strings.Index(fake.calls[0].user, "make test")
	filePos := strings.Index(fake.calls[0].user, "proj/main.go")
	if cmdPos == -1 || filePos == -1 || cmdPos > filePos {
		t.Errorf("merged events out of order in LLM input")
	}

	data, err := os.ReadFile(filepath.Join(outDir, "2026-08-23.md"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "the daily report") {
		t.Errorf("artifact missing summary:\n%s", content)
	}
	if !strings.HasPrefix(content, "---\n") || !strings.Contains(content, "model: llama3.2") {
		t.Errorf("artifact missing front matter:\n%s", content)
	}
	if !strings.Contains(content, "events: 2") || !strings.Contains(content, "chunks: 1") {
		t.Errorf("front matter counts wrong:\n%s", content)
	}

	// Both logs were consumed.
	if got := fileLog.Read(); len(got) != 0 {
		t.Errorf("file log not truncated: %d events", len(got))
	}
	if got := cmdLog.Read(); len(got) != 0 {
		t.Errorf("command log not truncated: %d events", len(got))
	}
}

func TestRunOnceIterativeReduction(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"seed", "seed+2", "seed+3"}}
	// A tiny limit forces one chunk per event.
	p, fileLog, cmdLog, _ := newTestPipeline(t, fake, 1)
	seedLogs(t, fileLog, cmdLog)
	if err := cmdLog.Append(eventlog.Event{Command: &eventlog.CommandEvent{
		Timestamp: 1700000200, Pane: "dev:1.0", Command: "go vet ./...", Output: []string{"clean"},
	}}); err != nil {
		t.Fatal(err)
	}

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(fake.calls) != 3 {
		t.Fatalf("LLM calls = %d, want 3", len(fake.calls))
	}
	if fake.calls[0].system == fake.calls[1].system {
		t.Error("fold calls reused the seed prompt")
	}
	// Each fold receives the running summary plus the next chunk.
	if !strings.HasPrefix(fake.calls[1].user, "seed\n\n") {
		t.Errorf("second call user = %q, want seed prefix", fake.calls[1].user)
	}
	if !strings.HasPrefix(fake.calls[2].user, "seed+2\n\n") {
		t.Errorf("third call user = %q, want accumulator prefix", fake.calls[2].user)
	}
}

func TestRunOnceEmptyLogs(t *testing.T) {
	fake := &fakeCompleter{}
	p, fileLog, cmdLog, outDir := newTestPipeline(t, fake, 1000)

	err := p.RunOnce(context.Background())
	if !errors.Is(err, ErrNoEvents) {
		t.Fatalf("err = %v, want ErrNoEvents", err)
	}
	if len(fake.calls) != 0 {
		t.Error("LLM called with no events")
	}
	if !p.lastRunDay.IsZero() {
		t.Error("empty run marked the day done")
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "2026-08-23.md")); !os.IsNotExist(statErr) {
		t.Error("artifact written for empty run")
	}

	// A retry later the same day is still due.
	if !p.ShouldRun(testNow.Add(time.Minute)) {
		t.Error("retry blocked after empty run")
	}

	// Once events arrive the same pipeline succeeds.
	seedLogs(t, fileLog, cmdLog)
	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry RunOnce: %v", err)
	}
}

func TestRunOnceLLMFailureKeepsLogs(t *testing.T) {
	fake := &fakeCompleter{failAt: 2, err: errors.New("model overloaded")}
	p, fileLog, cmdLog, outDir := newTestPipeline(t, fake, 1)
	seedLogs(t, fileLog, cmdLog)

	err := p.RunOnce(context.Background())
	if err == nil {
		t.Fatal("LLM failure not surfaced")
	}
	if errors.Is(err, ErrNoEvents) {
		t.Fatalf("wrong error: %v", err)
	}

	// Nothing was consumed and the day is not marked done.
	if got := fileLog.Read(); len(got) != 1 {
		t.Errorf("file log altered after failure: %d events", len(got))
	}
	if got := cmdLog.Read(); len(got) != 1 {
		t.Errorf("command log altered after failure: %d events", len(got))
	}
	if !p.lastRunDay.IsZero() {
		t.Error("failed run marked the day done")
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "2026-08-23.md")); !os.IsNotExist(statErr) {
		t.Error("partial artifact written after failure")
	}
}

func TestSummarizeMalformedInput(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, &fakeCompleter{}, 1000)
	if _, err := p.Summarize(context.Background(), "{not json"); err == nil {
		t.Fatal("malformed input accepted")
	}
}

func TestArtifactPath(t *testing.T) {
	p, _, _, outDir := newTestPipeline(t, &fakeCompleter{}, 1000)
	want := filepath.Join(outDir, "2026-08-23.md")
	if got := p.ArtifactPath(testNow); got != want {
		t.Errorf("ArtifactPath = %q, want %q", got, want)
	}
}
