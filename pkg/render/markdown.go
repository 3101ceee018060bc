// Package render turns explanation markdown into terminal output.
package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Markdown renders markdown for terminal display with the given word wrap width.
// if noColor is true the content is returned unchanged, which also serves
// non-terminal consumers that want the raw markdown.
func Markdown(content string, width int, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	return result, nil
}
