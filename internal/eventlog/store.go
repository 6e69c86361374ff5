package eventlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	"github.com/kfrem/recapify/internal/util"
)

// Store is one on-disk event log: a single JSON array of events. Appends
// are whole-file read-modify-rewrite; the rewrite itself is atomic but
// concurrent writers are deliberately uncoordinated (last writer wins).
type Store struct {
	Path string
	log  *slog.Logger
}

// NewStore returns a store for the log at path. A nil logger falls back to
// slog.Default.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Path: path, log: logger}
}

// Read returns all events currently in the log. A missing file or malformed
// JSON is treated as an empty log; events of unknown type are skipped.
func (s *Store) Read() []Event {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("event log unreadable, treating as empty", "path", s.Path, "error", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("event log malformed, treating as empty", "path", s.Path, "error", err)
		return nil
	}

	events := make([]Event, 0, len(raw))
	for _, msg := range raw {
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.log.Warn("skipping unrecognized event", "path", s.Path, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Append reads the current log, adds events in memory and rewrites the
// whole file.
func (s *Store) Append(events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	all := append(s.Read(), events...)
	data, err := marshalIndented(all)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.Path, data, 0o644)
}

// Truncate empties the log after its events have been consumed.
func (s *Store) Truncate() error {
	return util.AtomicWriteFile(s.Path, []byte("[]\n"), 0o644)
}

// Merge concatenates two event slices and stable-sorts them by timestamp
// ascending; ties keep arrival order (a before b).
func Merge(a, b []Event) []Event {
	merged := make([]Event, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Unix() < merged[j].Unix()
	})
	return merged
}

// MarshalEvents serializes events as a compact JSON array with a stable key
// order, so chunk boundaries are reproducible across runs.
func MarshalEvents(events []Event) (string, error) {
	if len(events) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalIndented(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
