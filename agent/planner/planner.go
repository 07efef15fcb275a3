// Package planner implements the top-level planning agent: the same
// step() shape as the executor but a fixed tool set (the Plan Tool plus
// a small helper set) and a system prompt that forces short, feasible
// plans.
package planner

import (
	"context"
	"errors"

	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/llmclient"
	"github.com/agentctl/controlplane/plan"
	"github.com/agentctl/controlplane/replay"
	"github.com/agentctl/controlplane/toolschema"
)

// ErrNoAction mirrors executor.ErrNoAction for the planner's own step
// loop: the model returned neither text nor a tool call.
var ErrNoAction = errors.New("planner: model returned no action")

// DefaultPlanSteps is synthesised by the controller when the planner's
// first step fails to emit a planning.create tool call.
var DefaultPlanSteps = []string{"Analyze the request", "Perform tasks", "Check the result"}

const systemPromptSuffix = "\n\nKeep plans short and feasible: prefer 5 steps or fewer."

// Dependencies are the collaborators a planning step needs.
type Dependencies struct {
	LLM              llmclient.Client
	Replay           *replay.Manager
	SystemPrompt     string
	Examples         string
	MaxMessageChars  int
	CachingSupported bool
}

// Planner runs the top-level planning agent's step() loop.
type Planner struct {
	deps  Dependencies
	queue []event.Action
}

// New returns a Planner with an empty pending-action queue.
func New(deps Dependencies) *Planner {
	return &Planner{deps: deps}
}

// Reset empties the pending action queue.
func (p *Planner) Reset() {
	p.queue = nil
}

// Step runs one planning turn: same shape as the executor's Step,
// restricted to the Plan Tool and the helper set.
func (p *Planner) Step(ctx context.Context, state *event.State) (event.Action, error) {
	if len(p.queue) > 0 {
		return p.pop(), nil
	}

	if p.deps.Replay != nil && p.deps.Replay.ShouldReplay() {
		p.queue = append(p.queue, p.deps.Replay.Next())
		return p.pop(), nil
	}

	messages := convmemory.Build(state.History, convmemory.Options{
		SystemPrompt:     p.deps.SystemPrompt + systemPromptSuffix,
		Examples:         p.deps.Examples,
		MaxMessageChars:  p.deps.MaxMessageChars,
		CachingSupported: p.deps.CachingSupported,
	})

	resp, err := p.deps.LLM.Complete(ctx, messages, ToolSet(), llmclient.Metadata{
		AgentName: "planner",
		SessionID: state.SessionID,
	})
	if err != nil {
		return nil, err
	}

	actions := parseResponse(resp)
	if len(actions) == 0 {
		return nil, ErrNoAction
	}
	p.queue = append(p.queue, actions...)
	return p.pop(), nil
}

func (p *Planner) pop() event.Action {
	a := p.queue[0]
	p.queue = p.queue[1:]
	return a
}

// ToolSet returns the planner's fixed tool set: the Plan Tool plus the
// helper set, never merged with Function Hub results.
func ToolSet() []toolschema.Tool {
	return []toolschema.Tool{
		{Name: plan.ToolName, Description: "Create and manage structured, multi-step plans for complex tasks.", ParametersSchema: []byte(plan.JSONSchema)},
		{Name: "think", Description: "Record a private reasoning note without taking any other action.", ParametersSchema: []byte(`{"type":"object","properties":{"thought":{"type":"string"}},"required":["thought"]}`)},
		{Name: "finish", Description: "Signal that the plan is complete.", ParametersSchema: []byte(`{"type":"object","properties":{"final_thought":{"type":"string"}},"required":["final_thought"]}`)},
	}
}

func parseResponse(resp *llmclient.Response) []event.Action {
	var actions []event.Action
	if resp.Content != "" {
		actions = append(actions, event.NewMessageAction(resp.Content, event.Meta{}))
	}
	for _, tc := range resp.ToolCalls {
		actions = append(actions, actionForToolCall(tc))
	}
	return actions
}

func actionForToolCall(tc llmclient.ToolCall) event.Action {
	switch tc.Name {
	case plan.ToolName:
		return planActionFromArgs(tc)
	case "finish":
		return event.NewAgentFinishAction(stringArg(tc.Arguments, "final_thought"), tc.Arguments, event.Meta{})
	case "think":
		return event.NewMessageAction(stringArg(tc.Arguments, "thought"), event.Meta{})
	default:
		return event.NewToolCallAction("", tc.Name, tc.Arguments, tc.ID, event.Meta{})
	}
}

// planActionFromArgs maps a planning.create/mark_step tool call into the
// Action the Plan Controller reacts to specially (plan.Execute does the
// same translation for the Plan Store's own callers; the planner needs
// the Action form directly since it never touches the Store itself).
func planActionFromArgs(tc llmclient.ToolCall) event.Action {
	args := tc.Arguments
	command, _ := args["command"].(string)
	planID, _ := args["plan_id"].(string)

	switch plan.Command(command) {
	case plan.CmdCreate:
		steps := stringSliceArg(args, "steps")
		title, _ := args["title"].(string)
		return event.NewCreatePlanAction(planID, title, steps, event.Meta{})
	case plan.CmdMarkStep:
		status, _ := args["step_status"].(string)
		index := intArg(args, "step_index")
		a := event.NewMarkTaskAction(planID, index, status, event.Meta{})
		if notes, ok := args["step_notes"].(string); ok {
			a.Notes = notes
			a.HasNotes = true
		}
		return a
	default:
		// update/list/get/set_active/delete/add_result are synchronous commands with
		// no controller-level side effect; the planner routes them as a
		// generic tool call so the caller can apply them to the Plan Store
		// directly via plan.Execute and return the rendered result as an
		// observation.
		return event.NewToolCallAction("", plan.ToolName, args, tc.ID, event.Meta{})
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
