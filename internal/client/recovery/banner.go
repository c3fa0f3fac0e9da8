package recovery

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorOK      = lipgloss.Color("#22C55E")
	colorWarn    = lipgloss.Color("#EAB308")
	colorProblem = lipgloss.Color("#EF4444")
	colorFaint   = lipgloss.Color("#6B7280")
)

// Banner renders the status as a one-line indicator.
func Banner(st Status) string {
	parts := bannerParts(st)

	color := colorOK
	switch {
	case st.RejectedCount > 0 || st.AbandonedCount > 0:
		color = colorProblem
	case len(parts) > 0:
		color = colorWarn
	}

	if len(parts) == 0 {
		parts = []string{"All changes saved"}
	}

	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(color).
		Render("●")
	text := lipgloss.NewStyle().
		Foreground(color).
		Render(strings.Join(parts, " · "))

	line := badge + " " + text
	if hint := bannerHint(st); hint != "" {
		line += "  " + lipgloss.NewStyle().Foreground(colorFaint).Render(hint)
	}
	return line
}

func bannerParts(st Status) []string {
	var parts []string
	if !st.IsOnline {
		parts = append(parts, "Offline")
	}
	if st.IsSyncing {
		parts = append(parts, "Syncing")
	}
	if st.PendingCount > 0 {
		parts = append(parts, plural(st.PendingCount, "change", "changes")+" pending")
	}
	if retrying := st.FailedCount - st.RejectedCount; retrying > 0 {
		parts = append(parts, plural(retrying, "change", "changes")+" will retry")
	}
	if st.RejectedCount > 0 {
		parts = append(parts, plural(st.RejectedCount, "change", "changes")+" rejected by server")
	}
	if st.AbandonedCount > 0 {
		parts = append(parts, plural(st.AbandonedCount, "change", "changes")+" gave up")
	}
	if st.DraftCount > 0 {
		parts = append(parts, plural(st.DraftCount, "unsent draft", "unsent drafts"))
	}
	if st.Degraded {
		parts = append(parts, "Local storage almost full")
	}
	return parts
}

// bannerHint names the action that resolves the most serious problem.
func bannerHint(st Status) string {
	switch {
	case st.RejectedCount > 0 || st.AbandonedCount > 0:
		return "retry or discard them"
	case st.DraftCount > 0:
		return "retry drafts to submit them"
	case st.PendingCount > 0 && st.IsOnline && !st.IsSyncing:
		return "sync now"
	default:
		return ""
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
