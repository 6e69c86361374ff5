package tmux

import (
	"regexp"
	"strings"
)

// Shell prompt terminators checked on the trailing line of a pane.
var promptIndicators = []string{
	"$", "%", ">", ">>", ">>>", "❯", "➜", "✗", "✓", "→", "»", "⟩", "#",
}

// Prompt shapes matched against the trailing line when no bare terminator
// is found: user@host:path$, parenthesized venv prefix, bracketed prefix,
// generic word+terminator, bare glyph runs.
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`.*[@:].*[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^[^@]*@[^:]*:[^$%>❯➜#]*[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^\([^)]+\)\s*[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^\[[^\]]+\]\s*[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^.*\s+[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^\w+\s*[$%>❯➜#]\s*$`),
	regexp.MustCompile(`^[$%>❯➜#]+\s*$`),
}

var homePromptPattern = regexp.MustCompile(`.*~[>$]\s*$`)

// bashCommandPattern extracts whatever follows the last "$" on a prompt line.
var bashCommandPattern = regexp.MustCompile(`^[^$]*\$\s*(.+)$`)

// Unicode prompt glyphs used by styled shells (starship, oh-my-zsh themes).
var promptGlyphs = []string{"❯", "➜", "→", "»", "⟩"}

// Lines that contain a command after a prompt, used to locate the command
// line when slicing out its output.
var commandLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[^$]*\$\s*.+$`),
	regexp.MustCompile(`^.*[❯➜→»⟩]\s*.+$`),
	regexp.MustCompile(`^>>>\s*.+$`),
}

// Lines that are only a prompt, marking the end of a command's output.
var barePromptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[^$]*\$$`),
	regexp.MustCompile(`^.*[❯➜→»⟩]$`),
	regexp.MustCompile(`^>>>$`),
}

// Commands too noisy to record.
var noiseCommands = map[string]bool{
	"ls": true, "cd": true, "pwd": true, "echo": true,
	"cat": true, "clear": true, "history": true,
}

// maxCommandTokens rejects pasted blobs masquerading as commands.
const maxCommandTokens = 10

// IsCommandFinished reports whether the trailing line of the pane content
// looks like an idle shell prompt, meaning the last command has completed.
func IsCommandFinished(content string) bool {
	lines := splitTrimmed(content)
	if len(lines) == 0 {
		return false
	}
	last := strings.TrimSpace(lines[len(lines)-1])

	for _, ind := range promptIndicators {
		if strings.HasSuffix(last, ind) || strings.HasSuffix(last, ind+" ") {
			return true
		}
	}
	for _, re := range promptPatterns {
		if re.MatchString(last) {
			return true
		}
	}
	return homePromptPattern.MatchString(last)
}

// CommandFromContent extracts the most recently executed command from pane
// content. It returns "" when the pane is still busy or no valid command is
// found.
func CommandFromContent(content string) string {
	if !IsCommandFinished(content) {
		return ""
	}
	lines := splitTrimmed(content)
	if len(lines) < 2 {
		return ""
	}

	// The trailing line is the idle prompt; scan upward from the line above.
	for i := len(lines) - 2; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		if m := bashCommandPattern.FindStringSubmatch(line); m != nil {
			if cmd := strings.TrimSpace(m[1]); IsValidCommand(cmd) {
				return cmd
			}
		}

		for _, glyph := range promptGlyphs {
			if strings.Contains(line, glyph) {
				parts := strings.SplitN(line, glyph, 2)
				if len(parts) == 2 {
					if cmd := strings.TrimSpace(parts[1]); cmd != "" && IsValidCommand(cmd) {
						return cmd
					}
				}
			}
		}

		if strings.HasPrefix(line, ">>> ") && len(line) > 4 {
			if cmd := strings.TrimSpace(line[4:]); IsValidCommand(cmd) {
				return cmd
			}
		}
	}
	return ""
}

// ExtractLastCommandOutput returns the slice of pane content from the last
// command line down to (but excluding) the next bare prompt.
func ExtractLastCommandOutput(content string) string {
	lines := splitTrimmed(content)
	if len(lines) == 0 {
		return ""
	}

	cmdIdx := -1
	for i := len(lines) - 1; i >= 0 && cmdIdx == -1; i-- {
		line := strings.TrimSpace(lines[i])
		for _, re := range commandLinePatterns {
			if re.MatchString(line) {
				cmdIdx = i
				break
			}
		}
	}
	if cmdIdx == -1 {
		return ""
	}

	end := len(lines)
	for i := cmdIdx + 1; i < len(lines) && end == len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		for _, re := range barePromptPatterns {
			if re.MatchString(line) {
				end = i
				break
			}
		}
	}

	return strings.Join(lines[cmdIdx:end], "\n")
}

// IsValidCommand filters out empty, oversized and noise commands.
func IsValidCommand(cmd string) bool {
	if cmd == "" {
		return false
	}
	tokens := strings.Fields(cmd)
	if len(tokens) == 0 || len(tokens) > maxCommandTokens {
		return false
	}
	return !noiseCommands[tokens[0]]
}

func splitTrimmed(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
