// Package chunker splits a merged event stream into pieces that fit an
// approximate token budget, so each piece can go through one LLM call.
package chunker

import (
	"encoding/json"
	"fmt"

	"github.com/kfrem/recapify/internal/eventlog"
)

// CharsPerToken is the character-count heuristic used in place of a real
// tokenizer.
const CharsPerToken = 4

// Estimate approximates the token count of s.
func Estimate(s string) int {
	return len(s) / CharsPerToken
}

// Split parses a serialized event sequence and greedily packs the events
// into chunks whose estimated token count stays within tokenLimit. Each
// returned chunk is itself a JSON array of events. Every input event lands
// in exactly one chunk, in original order; a single event whose own
// estimate exceeds the limit still becomes its own chunk.
func Split(serialized string, tokenLimit int) ([]string, error) {
	var events []eventlog.Event
	if err := json.Unmarshal([]byte(serialized), &events); err != nil {
		return nil, fmt.Errorf("parse event sequence: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	if tokenLimit <= 0 {
		return nil, fmt.Errorf("token limit must be positive, got %d", tokenLimit)
	}

	var chunks []string
	var current []eventlog.Event
	currentTokens := 0

	seal := func() error {
		if len(current) == 0 {
			return nil
		}
		payload, err := eventlog.MarshalEvents(current)
		if err != nil {
			return err
		}
		chunks = append(chunks, payload)
		current = nil
		currentTokens = 0
		return nil
	}

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		tokens := Estimate(string(data))

		if len(current) > 0 && currentTokens+tokens > tokenLimit {
			if err := seal(); err != nil {
				return nil, err
			}
		}
		current = append(current, ev)
		currentTokens += tokens
	}
	if err := seal(); err != nil {
		return nil, err
	}
	return chunks, nil
}
