package cliui

import (
	"github.com/charmbracelet/glamour"
)

// Appearance is the subset of settings that shapes rendered output.
type Appearance struct {
	// Theme is a glamour standard style name, or "auto" to follow the
	// terminal background.
	Theme string

	// AccentColor is a #rrggbb colour for prompts, metrics and progress.
	AccentColor string

	// WordWrap is the column replies are wrapped at.
	WordWrap int
}

// DefaultAppearance matches the settings defaults.
var DefaultAppearance = Appearance{Theme: "dark", AccentColor: "#3b82f6", WordWrap: 80}

// NewMarkdownRenderer builds a glamour renderer for a.
func NewMarkdownRenderer(a Appearance) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(a.WordWrap),
	}
	switch a.Theme {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(a.Theme))
	}
	return glamour.NewTermRenderer(opts...)
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the raw content is returned alongside the error.
func RenderMarkdown(content string, a Appearance) (string, error) {
	r, err := NewMarkdownRenderer(a)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
