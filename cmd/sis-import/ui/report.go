package ui

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders a markdown report for the terminal. The raw markdown
// is returned if rendering fails.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
