package plan

import (
	"fmt"
	"strings"

	"github.com/agentctl/controlplane/event"
)

// statusMark is the single-glyph marker shown next to a step in Render.
func statusMark(s event.TaskStatus) string {
	switch s {
	case event.TaskCompleted:
		return "[x]"
	case event.TaskInProgress:
		return "[>]"
	case event.TaskBlocked:
		return "[!]"
	default:
		return "[ ]"
	}
}

// Render formats a plan as a header, progress percentage, status legend,
// and one line per step with optional notes/result lines. The completed
// count in the header always equals the number of COMPLETED steps.
func Render(p *event.Plan) string {
	total := len(p.Steps)
	completed := p.Completed()
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s (ID: %s)\n", p.Title, p.PlanID)
	fmt.Fprintf(&b, "Progress: %s (%.1f%%)\n", fmtProgress(completed, total), progress)
	b.WriteString("Status legend: [x] completed, [>] in progress, [!] blocked, [ ] not started\n\n")
	for i, t := range p.Steps {
		fmt.Fprintf(&b, "%d. %s %s\n", i, statusMark(t.Status), t.Content)
		if t.Notes != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", t.Notes)
		}
		if t.HasResult {
			fmt.Fprintf(&b, "   Result: %s\n", t.Result)
		}
	}
	return b.String()
}

// RenderList formats the output of Store.List.
func RenderList(entries []ListEntry) string {
	if len(entries) == 0 {
		return "No plans found. Create one with the create command."
	}
	var b strings.Builder
	b.WriteString("Available plans:\n")
	for _, e := range entries {
		marker := ""
		if e.Active {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "- %s%s: %s - %s\n", e.PlanID, marker, e.Title, fmtProgress(e.Completed, e.Total))
	}
	return b.String()
}
