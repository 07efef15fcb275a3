// Package convmemory builds the LLM-bound chat message list from the
// filtered event history: it joins adjacent same-role turns, attaches
// tool-call metadata, clips per-message text to a character budget, and
// marks prompt-caching anchors.
package convmemory

import (
	"fmt"
	"strings"

	"github.com/agentctl/controlplane/event"
)

// Role is the chat role a Message is rendered under.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one rendered chat turn.
type Message struct {
	Role Role
	Text string
	// ToolCallID correlates an assistant tool-call to its tool message.
	ToolCallID string
	// ToolName is set on assistant messages that carry a tool call.
	ToolName string
	// CacheAnchor marks this message as a prompt-caching boundary.
	CacheAnchor bool
}

const truncationMarker = "\n...[truncated %d of %d chars]"

// Options configures Build.
type Options struct {
	// SystemPrompt, when non-empty, is emitted as the first message.
	SystemPrompt string
	// Examples, when non-empty, is prepended once as an initial user
	// message carrying worked examples.
	Examples string
	// MaxMessageChars clips any single message's text; 0 disables clipping.
	MaxMessageChars int
	// CachingSupported marks the last system message and the last two
	// user messages as cache anchors.
	CachingSupported bool
}

// Build renders history into an ordered chat message list: a leading
// system message, an optional worked-examples user message, actions
// become assistant messages (tool-call metadata attached to the
// preceding assistant message with the paired observation becoming a
// matching-id tool message), adjacent same-role messages are joined with a
// blank line, and messages are clipped to MaxMessageChars.
func Build(history []event.Event, opts Options) []Message {
	var raw []Message

	if opts.SystemPrompt != "" {
		raw = append(raw, Message{Role: RoleSystem, Text: opts.SystemPrompt})
	}
	if opts.Examples != "" {
		raw = append(raw, Message{Role: RoleUser, Text: opts.Examples})
	}

	pendingToolCallID := ""
	pendingToolName := ""
	for _, e := range history {
		if e.IsAction() {
			text, toolCallID, toolName := renderAction(e)
			role := RoleAssistant
			if e.Src() == event.SourceUser {
				role = RoleUser
				toolCallID, toolName = "", ""
			}
			raw = append(raw, Message{Role: role, Text: text, ToolCallID: toolCallID, ToolName: toolName})
			if toolCallID != "" {
				pendingToolCallID, pendingToolName = toolCallID, toolName
			}
			continue
		}
		text, obsToolCallID := renderObservation(e)
		if obsToolCallID == "" {
			obsToolCallID = pendingToolCallID
		}
		role := RoleUser
		if obsToolCallID != "" {
			role = RoleTool
		}
		raw = append(raw, Message{Role: role, Text: text, ToolCallID: obsToolCallID, ToolName: pendingToolName})
		pendingToolCallID, pendingToolName = "", ""
	}

	joined := joinAdjacentSameRole(raw)
	clipped := clip(joined, opts.MaxMessageChars)
	if opts.CachingSupported {
		markCacheAnchors(clipped)
	}
	return clipped
}

func renderAction(a event.Event) (text, toolCallID, toolName string) {
	switch v := a.(type) {
	case *event.MessageAction:
		return v.Content, "", ""
	case *event.CmdRunAction:
		return fmt.Sprintf("$ %s", v.Command), v.ToolCallID, "execute_bash"
	case *event.CodeCellRunAction:
		return v.Code, v.ToolCallID, "execute_ipython_cell"
	case *event.FileEditAction:
		return fmt.Sprintf("edit %s", v.Path), v.ToolCallID, "edit_file"
	case *event.ToolCallAction:
		return fmt.Sprintf("call %s", v.Name), v.ToolCallID, v.Name
	case *event.RecallAction:
		return fmt.Sprintf("recall: %s", v.Query), "", ""
	case *event.CreatePlanAction:
		return fmt.Sprintf("create plan %s: %s", v.PlanID, v.Title), "", "plan"
	case *event.MarkTaskAction:
		return fmt.Sprintf("mark step %d of plan %s as %s", v.TaskIndex, v.PlanID, v.Status), "", "plan"
	case *event.AssignTaskAction:
		return fmt.Sprintf("assign task %d of plan %s to %s", v.TaskIndex, v.PlanID, v.DelegateID), "", ""
	case *event.AgentFinishAction:
		return v.FinalThought, "", "finish"
	case *event.AgentRejectAction:
		return v.Reason, "", ""
	case *event.ChangeAgentStateAction:
		return fmt.Sprintf("state -> %s", v.NewState), "", ""
	case *event.NullAction:
		return "", "", ""
	default:
		return "", "", ""
	}
}

func renderObservation(o event.Event) (text, toolCallID string) {
	switch v := o.(type) {
	case *event.CmdOutputObservation:
		return v.Output, v.Meta.ToolCallID
	case *event.FileEditObservation:
		return v.Diff, v.Meta.ToolCallID
	case *event.ErrorObservation:
		return v.Message, v.Meta.ToolCallID
	case *event.AgentStateChangedObservation:
		return fmt.Sprintf("state changed to %s", v.To), ""
	case *event.PlanStatusObservation:
		return v.Rendered, ""
	case *event.FunctionHubObservation:
		return v.TextContent, v.Meta.ToolCallID
	case *event.AgentCondensationObservation:
		return v.Summary, ""
	case *event.NullObservation:
		return "", ""
	default:
		return "", ""
	}
}

func joinAdjacentSameRole(in []Message) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		if len(out) > 0 && out[len(out)-1].Role == m.Role && out[len(out)-1].ToolCallID == m.ToolCallID {
			last := &out[len(out)-1]
			if m.Text != "" {
				if last.Text != "" {
					last.Text += "\n\n" + m.Text
				} else {
					last.Text = m.Text
				}
			}
			if last.ToolName == "" {
				last.ToolName = m.ToolName
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

func clip(in []Message, maxChars int) []Message {
	if maxChars <= 0 {
		return in
	}
	out := make([]Message, len(in))
	for i, m := range in {
		if len(m.Text) > maxChars {
			kept := m.Text[:maxChars]
			m.Text = kept + fmt.Sprintf(truncationMarker, len(m.Text)-maxChars, len(m.Text))
		}
		out[i] = m
	}
	return out
}

func markCacheAnchors(msgs []Message) {
	lastSystem := -1
	userIdx := make([]int, 0, 2)
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			lastSystem = i
		case RoleUser:
			userIdx = append(userIdx, i)
		}
	}
	if lastSystem >= 0 {
		msgs[lastSystem].CacheAnchor = true
	}
	if n := len(userIdx); n > 0 {
		start := n - 2
		if start < 0 {
			start = 0
		}
		for _, i := range userIdx[start:] {
			msgs[i].CacheAnchor = true
		}
	}
}

// JoinText concatenates message texts with blank-line separation, for
// callers that need a flat transcript string rather than a structured
// message list.
func JoinText(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}
