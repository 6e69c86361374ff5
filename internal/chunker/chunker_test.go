package chunker

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/kfrem/recapify/internal/eventlog"
)

func makeCommand(ts int64, cmd string) eventlog.Event {
	return eventlog.Event{Command: &eventlog.CommandEvent{
		Timestamp: ts,
		Pane:      "dev:0.0",
		Command:   cmd,
		Output:    []string{"$ " + cmd, "done"},
	}}
}

func serialize(t *testing.T, events []eventlog.Event) string {
	t.Helper()
	s, err := eventlog.MarshalEvents(events)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return s
}

func TestEstimate(t *testing.T) {
	if got := Estimate("12345678"); got != 2 {
		t.Errorf("Estimate = %d, want 2", got)
	}
	if got := Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	chunks, err := Split("[]", 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}

func TestSplitMalformed(t *testing.T) {
	if _, err := Split("{oops", 100); err == nil {
		t.Error("Split accepted malformed input")
	}
}

func TestSplitOnePerChunkAtExactLimit(t *testing.T) {
	// N identical events, limit = single event estimate: one chunk each.
	const n = 5
	var events []eventlog.Event
	for i := 0; i < n; i++ {
		events = append(events, makeCommand(1, "make build"))
	}
	single, err := json.Marshal(events[0])
	if err != nil {
		t.Fatal(err)
	}
	limit := Estimate(string(single))

	chunks, err := Split(serialize(t, events), limit)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != n {
		t.Fatalf("chunks = %d, want %d", len(chunks), n)
	}
	for i, chunk := range chunks {
		var got []eventlog.Event
		if err := json.Unmarshal([]byte(chunk), &got); err != nil {
			t.Fatalf("chunk %d unparseable: %v", i, err)
		}
		if len(got) != 1 {
			t.Errorf("chunk %d holds %d events, want 1", i, len(got))
		}
	}
}

func TestSplitOversizedEventGetsOwnChunk(t *testing.T) {
	huge := makeCommand(1, "run "+strings.Repeat("x", 4000))
	small := makeCommand(2, "make")

	chunks, err := Split(serialize(t, []eventlog.Event{huge, small}), 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	for i, chunk := range chunks {
		var got []eventlog.Event
		if err := json.Unmarshal([]byte(chunk), &got); err != nil {
			t.Fatalf("chunk %d unparseable: %v", i, err)
		}
		if len(got) != 1 {
			t.Errorf("chunk %d holds %d events, want 1", i, len(got))
		}
	}
}

func TestSplitPacksWithinLimit(t *testing.T) {
	var events []eventlog.Event
	for i := 0; i < 10; i++ {
		events = append(events, makeCommand(int64(i), fmt.Sprintf("cmd-%d", i)))
	}
	chunks, err := Split(serialize(t, events), 1000000)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("chunks = %d, want 1 under a huge limit", len(chunks))
	}
}

// Property: concatenating all chunks' events in order reproduces the input
// sequence exactly once, for any event mix and any positive limit.
func TestSplitReassemblesExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		var events []eventlog.Event
		for i := 0; i < n; i++ {
			ts := rapid.Int64Range(0, 1<<32).Draw(t, fmt.Sprintf("ts%d", i))
			cmd := rapid.StringMatching(`[a-z ]{1,200}`).Draw(t, fmt.Sprintf("cmd%d", i))
			events = append(events, makeCommand(ts, cmd))
		}
		limit := rapid.IntRange(1, 500).Draw(t, "limit")

		serialized, err := eventlog.MarshalEvents(events)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		chunks, err := Split(serialized, limit)
		if err != nil {
			t.Fatalf("Split: %v", err)
		}

		var reassembled []eventlog.Event
		for _, chunk := range chunks {
			var part []eventlog.Event
			if err := json.Unmarshal([]byte(chunk), &part); err != nil {
				t.Fatalf("chunk unparseable: %v", err)
			}
			if len(part) == 0 {
				t.Fatal("empty chunk emitted")
			}
			reassembled = append(reassembled, part...)
		}

		want, _ := eventlog.MarshalEvents(events)
		got, _ := eventlog.MarshalEvents(reassembled)
		if got != want {
			t.Fatalf("reassembly mismatch:\nwant %s\ngot  %s", want, got)
		}
	})
}
