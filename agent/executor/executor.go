// Package executor implements the per-task delegate agent and its
// step() loop. It never mutates plan state directly; it communicates
// task completion by returning an AgentFinish action for the Plan
// Controller to interpret.
package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/functionhub"
	"github.com/agentctl/controlplane/llmclient"
	"github.com/agentctl/controlplane/replay"
	"github.com/agentctl/controlplane/toolschema"
)

// ErrNoAction is the "NoAction" model error: the LLM returned neither
// text nor a tool call. Recoverable: the caller publishes an
// ErrorObservation and retries on the next step.
var ErrNoAction = errors.New("executor: model returned no action")

const exitCommand = "/exit"

// Dependencies are the collaborators a step needs. LLM and Tools are
// required; Hub and Replay are optional.
type Dependencies struct {
	Tools             *toolschema.Registry
	Hub               *functionhub.Client
	LLM               llmclient.Client
	Replay            *replay.Manager
	SystemPrompt      string
	Examples          string
	MaxMessageChars   int
	CachingSupported  bool
	OnDuplicateTool   func(name string)
}

// Executor runs one delegate's step() loop, queueing every action parsed
// from a single LLM response and draining the queue before calling the
// LLM again.
type Executor struct {
	deps  Dependencies
	queue []event.Action
}

// New returns an Executor with an empty pending-action queue.
func New(deps Dependencies) *Executor {
	return &Executor{deps: deps}
}

// Reset empties the pending action queue.
func (e *Executor) Reset() {
	e.queue = nil
}

// Step runs one delegate turn, draining any queued actions from the
// prior LLM response before calling the model again.
func (e *Executor) Step(ctx context.Context, state *event.State) (event.Action, error) {
	if len(e.queue) > 0 {
		return e.pop(), nil
	}

	if msg, ok := lastUserMessage(state.History); ok && strings.TrimSpace(msg) == exitCommand {
		return event.NewAgentFinishAction("user requested exit", nil, event.Meta{}), nil
	}

	if e.deps.Replay != nil && e.deps.Replay.ShouldReplay() {
		e.queue = append(e.queue, e.deps.Replay.Next())
		return e.pop(), nil
	}

	messages := convmemory.Build(state.History, convmemory.Options{
		SystemPrompt:     e.deps.SystemPrompt,
		Examples:         e.deps.Examples,
		MaxMessageChars:  e.deps.MaxMessageChars,
		CachingSupported: e.deps.CachingSupported,
	})

	planState, currentStep := planContext(state)

	var hubTools []functionhub.ToolDescriptor
	if e.deps.Hub != nil {
		hubTools = e.deps.Hub.Search(ctx, planState, currentStep, functionhub.SearchOptions{})
	}
	merged := e.deps.Tools.Merge(hubTools, e.deps.OnDuplicateTool)

	resp, err := e.deps.LLM.Complete(ctx, messages, merged, llmclient.Metadata{
		AgentName: "executor",
		SessionID: state.SessionID,
	})
	if err != nil {
		return nil, err
	}

	actions := parseResponse(resp, merged)
	if len(actions) == 0 {
		return nil, ErrNoAction
	}
	e.queue = append(e.queue, actions...)
	return e.pop(), nil
}

func (e *Executor) pop() event.Action {
	a := e.queue[0]
	e.queue = e.queue[1:]
	return a
}

func parseResponse(resp *llmclient.Response, merged []toolschema.Tool) []event.Action {
	var actions []event.Action
	if resp.Content != "" {
		actions = append(actions, event.NewMessageAction(resp.Content, event.Meta{}))
	}
	for _, tc := range resp.ToolCalls {
		actions = append(actions, actionForToolCall(tc, merged))
	}
	return actions
}

// actionForToolCall maps a parsed tool call to its built-in action, or to
// a generic ToolCall action carrying the Function Hub external id when
// the name matches a hub-discovered tool instead of a built-in.
func actionForToolCall(tc llmclient.ToolCall, merged []toolschema.Tool) event.Action {
	switch tc.Name {
	case "execute_bash":
		return event.NewCmdRunAction(stringArg(tc.Arguments, "command"), tc.ID, event.Meta{})
	case "execute_ipython_cell":
		return event.NewCodeCellRunAction(stringArg(tc.Arguments, "code"), tc.ID, event.Meta{})
	case "edit_file":
		return event.NewFileEditAction(stringArg(tc.Arguments, "path"), stringArg(tc.Arguments, "content"), tc.ID, event.Meta{})
	case "finish":
		return event.NewAgentFinishAction(stringArg(tc.Arguments, "final_thought"), tc.Arguments, event.Meta{})
	case "think":
		return event.NewMessageAction(stringArg(tc.Arguments, "thought"), event.Meta{})
	default:
		externalID := toolschema.ExternalIDFor(merged, tc.Name)
		return event.NewToolCallAction(externalID, tc.Name, tc.Arguments, tc.ID, event.Meta{})
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// planContext extracts the plan-state and current-step strings a Function
// Hub search is keyed on: state.ExtraData overrides when present, else a
// fallback built from the user's intent, the last agent message (clipped
// to 200 chars), and any root-task description.
func planContext(state *event.State) (planState, currentStep string) {
	if v, ok := state.ExtraData["plan_state"].(string); ok && v != "" {
		planState = v
	}
	if v, ok := state.ExtraData["current_step"].(string); ok && v != "" {
		currentStep = v
	}
	if planState != "" && currentStep != "" {
		return planState, currentStep
	}

	var b strings.Builder
	if intent := firstUserMessageText(state.History); intent != "" {
		b.WriteString(intent)
	}
	if last := clipText(lastAgentMessageText(state.History), 200); last != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(last)
	}
	if root, ok := state.ExtraData["root_task_description"].(string); ok && root != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(root)
	}
	fallback := b.String()
	if planState == "" {
		planState = fallback
	}
	if currentStep == "" {
		currentStep = fallback
	}
	return planState, currentStep
}

func lastUserMessage(history []event.Event) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if a, ok := history[i].(*event.MessageAction); ok && history[i].Src() == event.SourceUser {
			return a.Content, true
		}
	}
	return "", false
}

func firstUserMessageText(history []event.Event) string {
	for _, e := range history {
		if a, ok := e.(*event.MessageAction); ok && e.Src() == event.SourceUser {
			return a.Content
		}
	}
	return ""
}

func lastAgentMessageText(history []event.Event) string {
	for i := len(history) - 1; i >= 0; i-- {
		if a, ok := history[i].(*event.MessageAction); ok && history[i].Src() != event.SourceUser {
			return a.Content
		}
	}
	return ""
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
