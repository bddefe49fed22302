package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ternlabs/tern/tools"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)
)

func renderPrompt() string {
	return promptStyle.Render("> ")
}

func renderDim(s string) string {
	return dimStyle.Render(s)
}

func renderError(s string) string {
	return errorStyle.Render("error: " + s)
}

func renderWarning(s string) string {
	return warnStyle.Render(s)
}

func renderToolHeader(tool, arguments string) string {
	const maxArgs = 120
	args := strings.ReplaceAll(arguments, "\n", " ")
	if len(args) > maxArgs {
		args = args[:maxArgs] + "..."
	}
	return toolStyle.Render("⏺ "+tool) + " " + dimStyle.Render(args)
}

// renderDiffLines colors a unified "- "/"+ " prefixed diff body.
func renderDiffLines(detail string) string {
	if detail == "" {
		return ""
	}
	lines := strings.Split(detail, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+"):
			lines[i] = addedStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removedStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// renderConfirm renders a pending confirmation as a bordered box
// followed by the y/n prompt.
func renderConfirm(req tools.ConfirmRequest) string {
	var body strings.Builder
	body.WriteString(toolStyle.Render(req.Tool) + "  " + req.Summary)
	if req.Detail != "" {
		body.WriteString("\n" + renderDiffLines(req.Detail))
	}
	return fmt.Sprintf("\n%s\n%s", confirmStyle.Render(body.String()),
		warnStyle.Render("allow? [y/N] "))
}
