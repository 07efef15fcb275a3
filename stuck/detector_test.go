package stuck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/stuck"
)

func repeatedPairHistory(n int) []event.Event {
	var out []event.Event
	for i := 0; i < n; i++ {
		out = append(out,
			event.NewCmdRunAction("ls", "", event.Meta{}),
			event.NewCmdOutputObservation("ls", "same output", 0, event.ToolCallMetadata{}, event.Meta{}),
		)
	}
	return out
}

func TestCheckDetectsRepeatedActionObservationPair(t *testing.T) {
	d := stuck.New()
	r := d.Check(repeatedPairHistory(3))
	assert.True(t, r.Detected)
	assert.Equal(t, stuck.ReasonRepeatedPair, r.Reason)
}

func TestCheckIgnoresVaryingPairs(t *testing.T) {
	d := stuck.New()
	history := []event.Event{
		event.NewCmdRunAction("ls", "", event.Meta{}),
		event.NewCmdOutputObservation("ls", "out1", 0, event.ToolCallMetadata{}, event.Meta{}),
		event.NewCmdRunAction("pwd", "", event.Meta{}),
		event.NewCmdOutputObservation("pwd", "out2", 0, event.ToolCallMetadata{}, event.Meta{}),
		event.NewCmdRunAction("whoami", "", event.Meta{}),
		event.NewCmdOutputObservation("whoami", "out3", 0, event.ToolCallMetadata{}, event.Meta{}),
	}
	r := d.Check(history)
	assert.False(t, r.Detected)
}

func TestCheckDetectsRepeatedError(t *testing.T) {
	d := stuck.New()
	history := []event.Event{
		event.NewErrorObservation("boom", event.ToolCallMetadata{}, event.Meta{}),
		event.NewMessageAction("retry", event.Meta{}),
		event.NewErrorObservation("boom", event.ToolCallMetadata{}, event.Meta{}),
		event.NewMessageAction("retry again", event.Meta{}),
		event.NewErrorObservation("boom", event.ToolCallMetadata{}, event.Meta{}),
	}
	r := d.Check(history)
	assert.True(t, r.Detected)
	assert.Equal(t, stuck.ReasonRepeatedError, r.Reason)
}

func TestCheckDetectsStateOscillation(t *testing.T) {
	d := stuck.New()
	history := []event.Event{
		event.NewAgentStateChangedObservation(event.AgentRunning, event.AgentAwaitingUserInput, "", event.Meta{}),
		event.NewAgentStateChangedObservation(event.AgentAwaitingUserInput, event.AgentRunning, "", event.Meta{}),
		event.NewAgentStateChangedObservation(event.AgentRunning, event.AgentAwaitingUserInput, "", event.Meta{}),
		event.NewAgentStateChangedObservation(event.AgentAwaitingUserInput, event.AgentRunning, "", event.Meta{}),
	}
	r := d.Check(history)
	assert.True(t, r.Detected)
	assert.Equal(t, stuck.ReasonStateOscillation, r.Reason)
}

func TestCheckReturnsNotDetectedOnEmptyHistory(t *testing.T) {
	d := stuck.New()
	r := d.Check(nil)
	assert.False(t, r.Detected)
}
