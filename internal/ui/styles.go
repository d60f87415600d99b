// Package ui renders terminal output for the lgd CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorGreen  = 71
	colorYellow = 178
	colorRed    = 167
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderRAG returns the indicator name in its own color. Unknown values are
// left plain.
func RenderRAG(r model.RAG) string {
	switch r {
	case model.RAGGreen:
		return paint(colorGreen, r.String())
	case model.RAGYellow:
		return paint(colorYellow, r.String())
	case model.RAGRed:
		return paint(colorRed, r.String())
	}
	return r.String()
}

// RenderFormStatus colors a form status by how far it is from approval.
func RenderFormStatus(s model.FormStatus) string {
	label := strings.ReplaceAll(s.String(), "_", " ")
	switch s {
	case model.FormApproved:
		return paint(colorGreen, label)
	case model.FormSubmitted:
		return paint(colorAccent, label)
	case model.FormRejected:
		return paint(colorRed, label)
	case model.FormChangeRequested:
		return paint(colorYellow, label)
	case model.FormNotStarted:
		return paint(colorMuted, label)
	}
	return label
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
