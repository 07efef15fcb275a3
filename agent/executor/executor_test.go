package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/agent/executor"
	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/llmclient"
	"github.com/agentctl/controlplane/toolschema"
)

type fakeLLM struct {
	responses []*llmclient.Response
	calls     int
}

func (f *fakeLLM) Complete(_ context.Context, _ []convmemory.Message, _ []toolschema.Tool, _ llmclient.Metadata) (*llmclient.Response, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func newState(history ...event.Event) *event.State {
	s := event.NewState("sess-1", 100)
	s.History = history
	return s
}

func TestStepReturnsExitFinishWithoutCallingLLM(t *testing.T) {
	llm := &fakeLLM{}
	ex := executor.New(executor.Dependencies{Tools: toolschema.NewRegistry(), LLM: llm})

	history := []event.Event{event.NewMessageAction("/exit", event.Meta{Source: event.SourceUser})}
	a, err := ex.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	assert.IsType(t, &event.AgentFinishAction{}, a)
	assert.Equal(t, 0, llm.calls)
}

func TestStepParsesTextAndToolCallIntoQueuedActions(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{
			Content: "running the command",
			ToolCalls: []llmclient.ToolCall{
				{ID: "call-1", Name: "execute_bash", Arguments: map[string]any{"command": "ls -la"}},
			},
		},
	}}
	ex := executor.New(executor.Dependencies{Tools: toolschema.NewRegistry(), LLM: llm})

	history := []event.Event{event.NewMessageAction("list files", event.Meta{Source: event.SourceUser})}
	first, err := ex.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	msg, ok := first.(*event.MessageAction)
	require.True(t, ok)
	assert.Equal(t, "running the command", msg.Content)

	second, err := ex.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	cmd, ok := second.(*event.CmdRunAction)
	require.True(t, ok)
	assert.Equal(t, "ls -la", cmd.Command)
	assert.Equal(t, "call-1", cmd.ToolCallID)

	assert.Equal(t, 1, llm.calls)
}

func TestStepReturnsNoActionErrorOnEmptyResponse(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{{}}}
	ex := executor.New(executor.Dependencies{Tools: toolschema.NewRegistry(), LLM: llm})

	history := []event.Event{event.NewMessageAction("hi", event.Meta{Source: event.SourceUser})}
	_, err := ex.Step(context.Background(), newState(history...))
	assert.ErrorIs(t, err, executor.ErrNoAction)
}

func TestStepRoutesUnknownToolNameThroughHubExternalID(t *testing.T) {
	llm := &fakeLLM{responses: []*llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{ID: "call-2", Name: "translate_text", Arguments: map[string]any{"text": "hola"}}}},
	}}
	registry := toolschema.NewRegistry()
	ex := executor.New(executor.Dependencies{Tools: registry, LLM: llm})

	history := []event.Event{event.NewMessageAction("translate", event.Meta{Source: event.SourceUser})}
	a, err := ex.Step(context.Background(), newState(history...))
	require.NoError(t, err)
	call, ok := a.(*event.ToolCallAction)
	require.True(t, ok)
	assert.Equal(t, "translate_text", call.Name)
	assert.Equal(t, "", call.ExternalID)
}
