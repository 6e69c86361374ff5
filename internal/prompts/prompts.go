// Package prompts ships the system prompts used by the summarizer.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed single.md many.md
var files embed.FS

// Load returns the named prompt text. Known names are "single" (summarize
// one chunk of activity logs) and "many" (fold a new chunk into a running
// summary).
func Load(name string) (string, error) {
	data, err := files.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return strings.TrimSpace(string(data)), nil
}
