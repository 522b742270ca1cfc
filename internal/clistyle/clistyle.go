// Package clistyle provides lipgloss-based styling for the device CLI's
// status and event output, color-coding each event kind the way a terminal
// user expects: blue for started work, green for completed work, yellow for
// warnings/skips, red for failures.
package clistyle

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/kaktoslabs/kaktos/pkg/ota"
)

var (
	ok      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	info    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	fail    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	muted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	bold    = lipgloss.NewStyle().Bold(true)
	heading = bold.Foreground(lipgloss.Color("15"))
)

// styleForEvent returns the style an event kind should render in.
func styleForEvent(kind ota.EventKind) lipgloss.Style {
	switch kind {
	case ota.EventUpdateApplied, ota.EventFileUpdateDone:
		return ok
	case ota.EventUpdateStart, ota.EventFileUpdateStart, ota.EventDownloadAttempt:
		return info
	case ota.EventFileUpdateSkip, ota.EventDownloadRetry, ota.EventFileDeleteExtra:
		return warn
	case ota.EventFileUpdateFailed:
		return fail
	default:
		return muted
	}
}

// glyphForEvent returns a short marker prefixed to a rendered event line.
func glyphForEvent(kind ota.EventKind) string {
	switch kind {
	case ota.EventUpdateApplied, ota.EventFileUpdateDone:
		return "✓"
	case ota.EventFileUpdateFailed:
		return "✗"
	case ota.EventFileUpdateSkip:
		return "·"
	case ota.EventDownloadRetry:
		return "↻"
	case ota.EventFileDeleteExtra:
		return "-"
	default:
		return "→"
	}
}

// RenderEvent formats one Event as a single styled line, e.g.
// "✓ file_update_done path=a.py index=2 total=3".
func RenderEvent(ev ota.Event) string {
	style := styleForEvent(ev.Kind)
	glyph := glyphForEvent(ev.Kind)
	line := fmt.Sprintf("%s %s%s", glyph, string(ev.Kind), renderPayload(ev.Payload))
	return style.Render(line)
}

func renderPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	// A fixed key order keeps output stable across runs for any key present.
	order := []string{"mode", "path", "index", "total", "from", "to", "attempt", "attempts", "wait_ms", "url", "policy", "error", "correlation_id"}
	seen := map[string]struct{}{}
	out := ""
	for _, key := range order {
		if v, ok := payload[key]; ok {
			out += fmt.Sprintf(" %s=%v", key, v)
			seen[key] = struct{}{}
		}
	}
	var rest []string
	for key := range payload {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out += fmt.Sprintf(" %s=%v", key, payload[key])
	}
	return out
}

// Heading renders a bold section title, as the status command uses for its
// "Updater state" section.
func Heading(text string) string {
	return heading.Render(text)
}

// Success renders text in the success style, for one-line command results.
func Success(text string) string {
	return ok.Render(text)
}

// Warning renders text in the warning style.
func Warning(text string) string {
	return warn.Render(text)
}

// Failure renders text in the failure style.
func Failure(text string) string {
	return fail.Render(text)
}

// Muted renders text in a dimmed style, for secondary detail lines.
func Muted(text string) string {
	return muted.Render(text)
}

// ErrorLine renders a pkg/ota.ErrorCode and message as a single failure line.
func ErrorLine(code ota.ErrorCode, message string) string {
	return fail.Render(fmt.Sprintf("✗ %s: %s", code, message))
}
