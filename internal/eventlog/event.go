// Package eventlog defines the activity event model shared by the watchers
// and the summarizer, and the JSON-array log files they communicate through.
//
// Two event kinds exist: a batch of detected file changes, and a completed
// terminal command. Both are discriminated on the wire by "event_type".
package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event type discriminators as they appear on the wire.
const (
	TypeChangesDetected  = "changes_detected"
	TypeCommandCompleted = "command_completed"
)

// ChangeRecord is a single file change inside a changes_detected event.
type ChangeRecord struct {
	File     string   `json:"file"`
	Status   string   `json:"status"` // "new" or "modified"
	Diff     []string `json:"diff"`
	IsBinary bool     `json:"is_binary"`
}

// Change statuses.
const (
	StatusNew      = "new"
	StatusModified = "modified"
)

// FileEvent groups the changes found in one watcher cycle.
type FileEvent struct {
	Timestamp int64
	Changes   []ChangeRecord
}

// CommandEvent records one completed terminal command.
type CommandEvent struct {
	Timestamp int64
	Pane      string
	Command   string
	Output    []string
}

// Event is a tagged union: exactly one of File or Command is non-nil.
type Event struct {
	File    *FileEvent
	Command *CommandEvent
}

// Unix returns the event timestamp in unix seconds. Events that carried no
// timestamp sort as zero.
func (e Event) Unix() int64 {
	switch {
	case e.File != nil:
		return e.File.Timestamp
	case e.Command != nil:
		return e.Command.Timestamp
	}
	return 0
}

// Wire shapes. Field order here fixes the JSON key order, which keeps the
// merged stream byte-stable across runs.
type fileEventJSON struct {
	EventType string         `json:"event_type"`
	Timestamp int64          `json:"timestamp"`
	Changes   []ChangeRecord `json:"changes"`
}

type commandEventJSON struct {
	EventType string   `json:"event_type"`
	Timestamp int64    `json:"timestamp"`
	Pane      string   `json:"pane"`
	Command   string   `json:"command"`
	Output    []string `json:"output"`
}

// MarshalJSON serializes the event in its wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.File != nil:
		changes := e.File.Changes
		if changes == nil {
			changes = []ChangeRecord{}
		}
		return json.Marshal(fileEventJSON{
			EventType: TypeChangesDetected,
			Timestamp: e.File.Timestamp,
			Changes:   changes,
		})
	case e.Command != nil:
		output := e.Command.Output
		if output == nil {
			output = []string{}
		}
		return json.Marshal(commandEventJSON{
			EventType: TypeCommandCompleted,
			Timestamp: e.Command.Timestamp,
			Pane:      e.Command.Pane,
			Command:   e.Command.Command,
			Output:    output,
		})
	}
	return nil, errors.New("eventlog: event has no payload")
}

// UnmarshalJSON decodes either wire shape, keyed on event_type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var probe struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.EventType {
	case TypeChangesDetected:
		var fe fileEventJSON
		if err := json.Unmarshal(data, &fe); err != nil {
			return err
		}
		e.File = &FileEvent{Timestamp: fe.Timestamp, Changes: fe.Changes}
		e.Command = nil
		return nil
	case TypeCommandCompleted:
		var ce commandEventJSON
		if err := json.Unmarshal(data, &ce); err != nil {
			return err
		}
		e.Command = &CommandEvent{
			Timestamp: ce.Timestamp,
			Pane:      ce.Pane,
			Command:   ce.Command,
			Output:    ce.Output,
		}
		e.File = nil
		return nil
	}
	return fmt.Errorf("eventlog: unknown event_type %q", probe.EventType)
}
