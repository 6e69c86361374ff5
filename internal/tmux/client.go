// Package tmux wraps the tmux binary and implements the prompt heuristics
// used to detect completed commands in pane content.
package tmux

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultScrollbackLines is how far back capture-pane reaches by default.
const DefaultScrollbackLines = 1000

// Client executes tmux commands.
type Client struct {
	// ScrollbackLines bounds how much history CapturePane requests before
	// falling back to the visible viewport.
	ScrollbackLines int
}

// NewClient returns a client with the default scrollback depth.
func NewClient() *Client {
	return &Client{ScrollbackLines: DefaultScrollbackLines}
}

func run(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// IsInstalled checks if tmux is available.
func IsInstalled() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// CapturePane returns the content of a pane including scrollback. If the
// scrollback query fails or comes back empty, it retries with just the
// visible viewport.
func (c *Client) CapturePane(pane string) (string, error) {
	lines := c.ScrollbackLines
	if lines <= 0 {
		lines = DefaultScrollbackLines
	}
	out, err := run("capture-pane", "-t", pane, "-S", fmt.Sprintf("-%d", lines), "-p")
	if err == nil && strings.TrimSpace(out) != "" {
		return out, nil
	}
	return run("capture-pane", "-t", pane, "-p")
}

// ListPanes returns every active pane across all sessions as
// "session:window.pane" identifiers.
func (c *Client) ListPanes() ([]string, error) {
	out, err := run("list-panes", "-a", "-F", "#{session_name}:#{window_index}.#{pane_index}")
	if err != nil {
		return nil, err
	}
	var panes []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			panes = append(panes, line)
		}
	}
	return panes, nil
}
