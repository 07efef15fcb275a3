// Package history implements the truncation algorithm the Plan Controller
// runs when the LLM reports a context-window overflow: halve history,
// repair the cut so every kept observation's cause action is present (or
// the orphan is dropped), and re-anchor on the first user message.
package history

import (
	"github.com/agentctl/controlplane/event"
)

// Result is the outcome of a Compress call.
type Result struct {
	// Kept is the truncated history, in original order.
	Kept []event.Event
	// TruncationID is id(Kept[0]) after repair — the boundary subsequent
	// reloads fetch forward from.
	TruncationID int64
	// StartID is id(U0), the first user message — guaranteed present
	// exactly once in Kept.
	StartID int64
	// Condensation is the observation to append and publish so the
	// controller schedules the next step instead of stalling on the gap.
	Condensation *event.AgentCondensationObservation
}

// Compress halves full (the complete, untruncated history for this
// session) and repairs the cut so no observation is kept without its
// cause action. full must be ordered by ascending id. It returns the
// zero Result if full is empty or carries no user message.
func Compress(full []event.Event, m event.Meta) Result {
	if len(full) == 0 {
		return Result{}
	}
	u0Idx := firstUserMessageIndex(full)
	if u0Idx < 0 {
		return Result{}
	}

	mid := len(full) / 2
	if mid < 1 {
		mid = 1
	}
	start := mid

	for start < len(full) {
		head := full[start]
		if !head.IsAction() && head.Cause() > 0 {
			if causeIdx := indexByID(full, head.Cause()); causeIdx >= 0 {
				start = causeIdx
				continue
			}
			start++
			continue
		}
		if head.IsAction() {
			if _, isMsg := head.(*event.MessageAction); isMsg || head.Src() == event.SourceUser {
				start++
				continue
			}
			if a, ok := head.(event.Action); ok && a.Runnable() {
				break
			}
		}
		break
	}

	kept := append([]event.Event(nil), full[start:]...)

	u0 := full[u0Idx]
	if indexByID(kept, u0.ID()) < 0 {
		kept = append([]event.Event{u0}, kept...)
	}
	if len(kept) == 0 {
		return Result{}
	}

	truncationID := kept[0].ID()
	startID := u0.ID()
	summary := "history compressed to recover context budget"
	cond := event.NewAgentCondensationObservation(truncationID, startID, summary, m)

	return Result{
		Kept:         kept,
		TruncationID: truncationID,
		StartID:      startID,
		Condensation: cond,
	}
}

func firstUserMessageIndex(full []event.Event) int {
	for i, e := range full {
		if e.IsAction() && e.Src() == event.SourceUser {
			return i
		}
	}
	return -1
}

func indexByID(events []event.Event, id int64) int {
	for i, e := range events {
		if e.ID() == id {
			return i
		}
	}
	return -1
}
