package cli

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 80

// Styles
var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// renderer formats chat output. On a terminal replies are rendered as
// markdown; otherwise everything is plain text.
type renderer struct {
	width    int
	styled   bool
	markdown *glamour.TermRenderer
}

func newRenderer(out io.Writer) *renderer {
	r := &renderer{width: terminalWidth(), styled: isTerminal(out)}
	if r.styled {
		md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(r.width))
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

func terminalWidth() int {
	if columns, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && columns > 20 {
		return columns - 2
	}
	return defaultWidth
}

func (r *renderer) prompt(userName string) string {
	if !r.styled {
		return ""
	}
	return userStyle.Render(userName + "> ")
}

func (r *renderer) reply(name, text string) string {
	if !r.styled {
		return name + ": " + text
	}
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(text); err == nil {
			return assistantStyle.Render(name+":") + "\n" + strings.TrimRight(rendered, "\n")
		}
	}
	return assistantStyle.Render(name+":") + " " + wordwrap.String(text, r.width)
}

func (r *renderer) info(text string) string {
	if !r.styled {
		return text
	}
	return systemStyle.Render(wordwrap.String(text, r.width))
}

func (r *renderer) failure(err error) string {
	text := "Error: " + err.Error()
	if !r.styled {
		return text
	}
	return errorStyle.Render(wordwrap.String(text, r.width))
}
