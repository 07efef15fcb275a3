package planner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/agent/planner"
	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/llmclient"
	"github.com/agentctl/controlplane/plan"
	"github.com/agentctl/controlplane/toolschema"
)

type fakeLLM struct {
	responses []*llmclient.Response
	calls     int
	lastTools []toolschema.Tool
}

func (f *fakeLLM) Complete(_ context.Context, _ []convmemory.Message, tools []toolschema.Tool, _ llmclient.Metadata) (*llmclient.Response, error) {
	resp := f.responses[f.calls]
	f.calls++
	f.lastTools = tools
	return resp, nil
}

func newState(history ...event.Event) *event.State {
	s := event.NewState("sess-1", 100)
	s.History = history
	return s
}

func TestStepUsesFixedToolSetRegardlessOfHistory(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{{Content: "thinking"}}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("do something complex", event.Meta{Source: event.SourceUser})}
	_, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)

	names := make([]string, 0, len(llm.lastTools))
	for _, tl := range llm.lastTools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{plan.ToolName, "think", "finish"}, names)
}

func TestStepReturnsNoActionErrorOnEmptyResponse(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{{}}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("hi", event.Meta{Source: event.SourceUser})}
	_, err := p.Step(context.Background(), newState(history...))
	assert.ErrorIs(t, err, planner.ErrNoAction)
}

func TestStepMapsPlanCreateToolCallToCreatePlanAction(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{
			ID:   "call-1",
			Name: plan.ToolName,
			Arguments: map[string]any{
				"command": string(plan.CmdCreate),
				"plan_id": "plan-1",
				"title":   "Ship the feature",
				"steps":   []any{"Analyze the request", "Perform tasks", "Check the result"},
			},
		}}},
	}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("ship it", event.Meta{Source: event.SourceUser})}
	a, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)

	created, ok := a.(*event.CreatePlanAction)
	require.True(t, ok)
	assert.Equal(t, "plan-1", created.PlanID)
	assert.Equal(t, "Ship the feature", created.Title)
	assert.Equal(t, []string{"Analyze the request", "Perform tasks", "Check the result"}, created.Steps)
}

func TestStepMapsMarkStepToolCallToMarkTaskAction(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{
			ID:   "call-2",
			Name: plan.ToolName,
			Arguments: map[string]any{
				"command":     string(plan.CmdMarkStep),
				"plan_id":     "plan-1",
				"step_index":  float64(1),
				"step_status": "completed",
				"step_notes":  "done early",
			},
		}}},
	}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("mark step", event.Meta{Source: event.SourceUser})}
	a, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)

	marked, ok := a.(*event.MarkTaskAction)
	require.True(t, ok)
	assert.Equal(t, "plan-1", marked.PlanID)
	assert.Equal(t, 1, marked.TaskIndex)
	assert.Equal(t, "completed", marked.Status)
	assert.True(t, marked.HasNotes)
	assert.Equal(t, "done early", marked.Notes)
}

func TestStepMapsOtherPlanCommandsToGenericToolCall(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{
			ID:   "call-3",
			Name: plan.ToolName,
			Arguments: map[string]any{
				"command": string(plan.CmdList),
			},
		}}},
	}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("list plans", event.Meta{Source: event.SourceUser})}
	a, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)

	call, ok := a.(*event.ToolCallAction)
	require.True(t, ok)
	assert.Equal(t, plan.ToolName, call.Name)
	assert.Equal(t, "call-3", call.ToolCallID)
}

func TestStepMapsFinishAndThinkToolCalls(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{
			ID:        "call-4",
			Name:      "think",
			Arguments: map[string]any{"thought": "plan looks solid"},
		}}},
	}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("go", event.Meta{Source: event.SourceUser})}
	a, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	msg, ok := a.(*event.MessageAction)
	require.True(t, ok)
	assert.Equal(t, "plan looks solid", msg.Content)

	llm2 := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{
			ID:        "call-5",
			Name:      "finish",
			Arguments: map[string]any{"final_thought": "all steps complete"},
		}}},
	}}
	p2 := planner.New(planner.Dependencies{LLM: llm2})
	a2, err := p2.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	fin, ok := a2.(*event.AgentFinishAction)
	require.True(t, ok)
	assert.Equal(t, "all steps complete", fin.FinalThought)
}

func TestStepDrainsQueueAcrossCalls(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{
			Content: "kicking off the plan",
			ToolCalls: []llmclient.ToolCall{{
				ID:   "call-6",
				Name: plan.ToolName,
				Arguments: map[string]any{
					"command": string(plan.CmdCreate),
					"plan_id": "plan-2",
					"title":   "Do the thing",
					"steps":   []any{"Step one"},
				},
			}},
		},
	}}
	p := planner.New(planner.Dependencies{LLM: llm})

	history := []event.Event{event.NewMessageAction("start", event.Meta{Source: event.SourceUser})}
	first, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	msg, ok := first.(*event.MessageAction)
	require.True(t, ok)
	assert.Equal(t, "kicking off the plan", msg.Content)

	second, err := p.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	_, ok = second.(*event.CreatePlanAction)
	require.True(t, ok)

	assert.Equal(t, 1, llm.calls)
}
