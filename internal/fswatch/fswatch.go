// Package fswatch monitors directories for file changes, classifies them
// and appends them as diffs to the file-change log.
//
// Detection is scan-based: every cycle re-enumerates the watched trees,
// fingerprints each file and diffs changed text files against the cached
// snapshot. An fsnotify watcher, when available, only wakes the scan early;
// it never replaces the scan, so the observable semantics stay those of
// polling (no rename tracking, no atomic directory snapshot).
package fswatch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kfrem/recapify/internal/eventlog"
	"github.com/kfrem/recapify/internal/fsutil"
)

// Defaults for the major-change classifier.
const (
	DefaultMinLinesChanged     = 3
	DefaultSimilarityThreshold = 0.7
)

// codeExtensions gates the structural-keyword check to recognized code files.
var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".java": true,
	".cpp": true, ".c": true, ".go": true, ".rs": true,
}

// codeKeywords are the structural markers whose appearance in a changed
// line makes the change major.
var codeKeywords = []string{
	"def ", "class ", "function ", "import ", "from ",
	"if ", "for ", "while ", "return ", "async ", "await ",
	"try ", "except ", "catch ", "throw ", "func ", "fn ", "match ",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// snapshot is the cached state of one watched file.
type snapshot struct {
	hash     string
	lines    []string // text files only
	isBinary bool
}

// Change is one detected file change, ready for the log.
type Change struct {
	Path        string // absolute path
	DisplayPath string // "<dir base>/<rel path>"
	Status      string // eventlog.StatusNew or StatusModified
	Diff        string // unified diff, or a binary-change marker line
	IsBinary    bool
}

// Watcher scans directories and detects file changes between cycles.
type Watcher struct {
	Dirs                []string
	IncludeFiletypes    []string
	ExcludeFiletypes    []string
	MajorChangesOnly    bool
	MinLinesChanged     int
	SimilarityThreshold float64

	store        *eventlog.Store
	excludePaths func() []string // log files and today's artifact
	snapshots    map[string]*snapshot
	log          *slog.Logger
	now          func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFiletypes sets include and exclude filetype suffix filters.
func WithFiletypes(include, exclude []string) Option {
	return func(w *Watcher) {
		w.IncludeFiletypes = include
		w.ExcludeFiletypes = exclude
	}
}

// WithMajorChangesOnly enables the significance classifier.
func WithMajorChangesOnly(minLines int, similarity float64) Option {
	return func(w *Watcher) {
		w.MajorChangesOnly = true
		if minLines > 0 {
			w.MinLinesChanged = minLines
		}
		if similarity > 0 {
			w.SimilarityThreshold = similarity
		}
	}
}

// WithExcludedPaths supplies the output paths that must never be watched,
// evaluated each scan so the dated artifact tracks the current day.
func WithExcludedPaths(paths func() []string) Option {
	return func(w *Watcher) { w.excludePaths = paths }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New returns a watcher over dirs writing to store. A nil logger falls back
// to slog.Default.
func New(dirs []string, store *eventlog.Store, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		Dirs:                dirs,
		MinLinesChanged:     DefaultMinLinesChanged,
		SimilarityThreshold: DefaultSimilarityThreshold,
		store:               store,
		excludePaths:        func() []string { return nil },
		snapshots:           make(map[string]*snapshot),
		log:                 logger,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ScanFiles enumerates every watched file across all directories.
func (w *Watcher) ScanFiles() []string {
	excluded := make(map[string]bool)
	for _, p := range w.excludePaths() {
		if abs, err := filepath.Abs(p); err == nil {
			excluded[abs] = true
		}
	}
	if abs, err := filepath.Abs(w.store.Path); err == nil {
		excluded[abs] = true
	}

	var files []string
	for _, dir := range w.Dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if d.IsDir() {
				return nil
			}
			if !w.matchesFiletypes(path) {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && excluded[abs] {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			w.log.Debug("directory walk failed", "dir", dir, "error", err)
		}
	}
	return files
}

func (w *Watcher) matchesFiletypes(path string) bool {
	for _, ft := range w.ExcludeFiletypes {
		if strings.HasSuffix(path, ft) {
			return false
		}
	}
	if len(w.IncludeFiletypes) == 0 {
		return true
	}
	for _, ft := range w.IncludeFiletypes {
		if strings.HasSuffix(path, ft) {
			return true
		}
	}
	return false
}

// Prime takes the initial snapshot of every watched file so the first
// change cycle only reports what actually changed afterwards.
func (w *Watcher) Prime() {
	for _, path := range w.ScanFiles() {
		hash, err := fsutil.Fingerprint(path)
		if err != nil {
			continue
		}
		binary, err := fsutil.IsBinary(path)
		if err != nil {
			continue
		}
		if binary {
			w.snapshots[path] = &snapshot{hash: hash, isBinary: true}
			continue
		}
		lines, err := fsutil.ReadLines(path)
		if err != nil {
			continue
		}
		w.snapshots[path] = &snapshot{hash: hash, lines: lines}
	}
	w.log.Debug("initial scan complete", "files", len(w.snapshots))
}

// CheckForChanges scans all watched files once and returns at most one
// change per file. Per-file errors skip the file for this cycle.
func (w *Watcher) CheckForChanges() []Change {
	var changes []Change

	for _, path := range w.ScanFiles() {
		hash, err := fsutil.Fingerprint(path)
		if err != nil {
			continue
		}
		dir, ok := fsutil.FindDirFor(path, w.Dirs)
		if !ok {
			continue
		}
		display := fsutil.DisplayPath(path, dir)

		binary, err := fsutil.IsBinary(path)
		if err != nil {
			continue
		}
		if binary {
			if change, ok := w.checkBinary(path, display, hash); ok {
				changes = append(changes, change)
			}
			continue
		}
		if change, ok := w.checkText(path, display, hash); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

func (w *Watcher) checkBinary(path, display, hash string) (Change, bool) {
	prev, known := w.snapshots[path]
	w.snapshots[path] = &snapshot{hash: hash, isBinary: true}

	switch {
	case !known:
		return Change{
			Path: path, DisplayPath: display,
			Status: eventlog.StatusNew, IsBinary: true,
			Diff: "Binary file added: " + display,
		}, true
	case prev.hash != hash:
		return Change{
			Path: path, DisplayPath: display,
			Status: eventlog.StatusModified, IsBinary: true,
			Diff: "Binary file modified: " + display,
		}, true
	}
	return Change{}, false
}

func (w *Watcher) checkText(path, display, hash string) (Change, bool) {
	lines, err := fsutil.ReadLines(path)
	if err != nil {
		return Change{}, false
	}

	prev, known := w.snapshots[path]
	w.snapshots[path] = &snapshot{hash: hash, lines: lines}

	switch {
	case !known:
		if !w.isMajorChange(nil, lines, path) {
			return Change{}, false
		}
		diff, ok := generateDiff(nil, lines, display)
		if !ok {
			return Change{}, false
		}
		return Change{Path: path, DisplayPath: display, Status: eventlog.StatusNew, Diff: diff}, true

	case prev.hash != hash:
		if !w.isMajorChange(prev.lines, lines, path) {
			w.log.Debug("minor change ignored", "file", display)
			return Change{}, false
		}
		diff, ok := generateDiff(prev.lines, lines, display)
		if !ok {
			return Change{}, false
		}
		return Change{Path: path, DisplayPath: display, Status: eventlog.StatusModified, Diff: diff}, true
	}
	return Change{}, false
}

// generateDiff renders a unified diff labeled a/<name> vs b/<name>.
// Returns false when the contents are identical.
func generateDiff(oldLines, newLines []string, name string) (string, bool) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        oldLines,
		B:        newLines,
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil || diff == "" {
		return "", false
	}
	return diff, true
}

// normalizeLine prepares a line for the significance classifier: trim,
// blank out comment-only lines, collapse whitespace runs. With the
// classifier disabled it is the identity.
func (w *Watcher) normalizeLine(line string) string {
	if !w.MajorChangesOnly {
		return line
	}
	normalized := strings.TrimSpace(line)
	if normalized == "" || strings.HasPrefix(normalized, "#") || strings.HasPrefix(normalized, "//") {
		return ""
	}
	return whitespaceRun.ReplaceAllString(normalized, " ")
}

// isMajorChange decides whether a modification is significant enough to
// record. With the classifier disabled every change is major.
func (w *Watcher) isMajorChange(oldLines, newLines []string, path string) bool {
	if !w.MajorChangesOnly {
		return true
	}

	oldNorm := make([]string, len(oldLines))
	for i, l := range oldLines {
		oldNorm[i] = w.normalizeLine(l)
	}
	newNorm := make([]string, len(newLines))
	for i, l := range newLines {
		newNorm[i] = w.normalizeLine(l)
	}

	oldSet := toSet(oldNorm)
	newSet := toSet(newNorm)

	var changed []string
	for l := range newSet {
		if !oldSet[l] {
			changed = append(changed, l)
		}
	}
	for l := range oldSet {
		if !newSet[l] {
			changed = append(changed, l)
		}
	}

	if codeExtensions[strings.ToLower(filepath.Ext(path))] {
		for _, line := range changed {
			lower := strings.ToLower(line)
			for _, kw := range codeKeywords {
				if strings.Contains(lower, kw) {
					return true
				}
			}
		}
	}

	if len(changed) >= w.MinLinesChanged {
		return true
	}

	// Positionally paired lines that drifted far apart indicate a rewrite
	// rather than a typo fix.
	n := len(oldNorm)
	if len(newNorm) < n {
		n = len(newNorm)
	}
	for i := 0; i < n; i++ {
		if oldNorm[i] == newNorm[i] {
			continue
		}
		m := difflib.NewMatcher(explode(oldNorm[i]), explode(newNorm[i]))
		if m.Ratio() < w.SimilarityThreshold {
			return true
		}
	}
	return false
}

func toSet(lines []string) map[string]bool {
	set := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l != "" {
			set[l] = true
		}
	}
	return set
}

// explode splits a string into single-character sequence elements for
// character-level similarity matching.
func explode(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// record groups changes into one log entry and appends it.
func (w *Watcher) record(changes []Change) {
	if len(changes) == 0 {
		return
	}
	records := make([]eventlog.ChangeRecord, 0, len(changes))
	for _, c := range changes {
		records = append(records, eventlog.ChangeRecord{
			File:     c.DisplayPath,
			Status:   c.Status,
			Diff:     splitDiffLines(c.Diff),
			IsBinary: c.IsBinary,
		})
		w.log.Debug("file change", "status", c.Status, "file", c.DisplayPath)
	}
	event := eventlog.Event{File: &eventlog.FileEvent{
		Timestamp: w.now().Unix(),
		Changes:   records,
	}}
	if err := w.store.Append(event); err != nil {
		w.log.Error("appending file events failed", "path", w.store.Path, "error", err)
	}
}

func splitDiffLines(diff string) []string {
	diff = strings.TrimSuffix(diff, "\n")
	if diff == "" {
		return nil
	}
	lines := strings.Split(diff, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}

// Run scans for changes until ctx is cancelled. Scans happen every
// interval; filesystem notifications, when available, trigger an early
// scan but detection itself stays snapshot-based.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	w.log.Info("watching directories", "dirs", w.Dirs)
	if len(w.IncludeFiletypes) > 0 {
		w.log.Debug("include filetypes", "filetypes", w.IncludeFiletypes)
	}
	if len(w.ExcludeFiletypes) > 0 {
		w.log.Debug("exclude filetypes", "filetypes", w.ExcludeFiletypes)
	}

	w.Prime()

	wake := w.startNotify(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
			// drain bursts so one save doesn't trigger several scans
			drained := false
			for !drained {
				select {
				case <-wake:
				default:
					drained = true
				}
			}
		}

		if changes := w.CheckForChanges(); len(changes) > 0 {
			w.log.Debug("changes detected", "count", len(changes))
			w.record(changes)
		}
	}
}

// startNotify sets up an fsnotify watcher over the watched trees and
// returns a channel that fires when anything changes. Failure to set it up
// degrades to pure polling.
func (w *Watcher) startNotify(ctx context.Context) <-chan struct{} {
	wake := make(chan struct{}, 1)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Debug("fsnotify unavailable, polling only", "error", err)
		return wake
	}

	added := 0
	for _, dir := range w.Dirs {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if err := fsw.Add(path); err == nil {
				added++
			}
			return nil
		})
	}
	w.log.Debug("fsnotify active", "watched_dirs", added)

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				// new directories join the watch so nested creates wake us too
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = fsw.Add(ev.Name)
					}
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return wake
}
