package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func styled(w io.Writer, style lipgloss.Style, prefix, msg string) {
	line := prefix + msg
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		line = style.Render(line)
	}
	fmt.Fprintln(w, line)
}

func banner(w io.Writer, msg string)  { styled(w, bannerStyle, "", msg) }
func success(w io.Writer, msg string) { styled(w, successStyle, "✓ ", msg) }
func failure(w io.Writer, msg string) { styled(w, failureStyle, "✗ ", msg) }
