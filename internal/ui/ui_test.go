package ui

import (
	"testing"

	"github.com/alfredjeanlab/lgates/internal/model"
)

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		tty  bool
		want bool
	}{
		{"tty", nil, true, true},
		{"pipe", nil, false, false},
		{"no color wins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, true, false},
		{"forced on pipe", map[string]string{"CLICOLOR_FORCE": "1"}, false, true},
		{"clicolor off", map[string]string{"CLICOLOR": "0"}, true, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			getenv := func(k string) string { return tc.env[k] }
			if got := shouldUseColor(getenv, func() bool { return tc.tty }); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRenderRAG(t *testing.T) {
	t.Cleanup(func() { SetColor(true) })

	SetColor(true)
	if got := RenderRAG(model.RAGRed); got != "\x1b[38;5;167mred\x1b[0m" {
		t.Fatalf("colored red = %q", got)
	}
	if got := RenderRAG("amber"); got != "amber" {
		t.Fatalf("unknown value should be plain, got %q", got)
	}

	ForceNoColor()
	if got := RenderRAG(model.RAGGreen); got != "green" {
		t.Fatalf("plain green = %q", got)
	}
}

func TestRenderFormStatus(t *testing.T) {
	t.Cleanup(func() { SetColor(true) })
	ForceNoColor()

	if got := RenderFormStatus(model.FormChangeRequested); got != "change requested" {
		t.Fatalf("got %q", got)
	}
	SetColor(true)
	if got := RenderFormStatus(model.FormApproved); got != "\x1b[38;5;71mapproved\x1b[0m" {
		t.Fatalf("got %q", got)
	}
}
