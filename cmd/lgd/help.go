package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/ui"
)

// helpRule styles every match of re. Groups listed in styled are passed
// through render; the rest are kept as they are.
type helpRule struct {
	re     *regexp.Regexp
	styled map[int]func(string) string
}

var helpRules = []helpRule{
	// Group and section headers ("Portfolio:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), map[int]func(string) string{1: ui.RenderAccent}},
	// Command names in the command list.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), map[int]func(string) string{2: ui.RenderCommand}},
	// Flag value types ("--version int64").
	{regexp.MustCompile(`(--?\S+\s+)(stringArray|string|int64|int|duration)\b`), map[int]func(string) string{2: ui.RenderMuted}},
	// Defaults ("(default "info")").
	{regexp.MustCompile(`(\(default "[^"]*"\))`), map[int]func(string) string{1: ui.RenderMuted}},
}

// colorizedHelpFunc returns a Cobra help function that renders the usual
// help text and styles it when stdout supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			groups := rule.re.FindStringSubmatch(match)
			var b bytes.Buffer
			for i, g := range groups[1:] {
				if render, ok := rule.styled[i+1]; ok {
					g = render(g)
				}
				b.WriteString(g)
			}
			return b.String()
		})
	}
	return s
}
