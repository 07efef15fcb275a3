package replay_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/replay"
)

func TestManagerReplaysUntilExhausted(t *testing.T) {
	src := replay.NewInMemorySource()
	src.Record("sess-1", []event.Action{
		event.NewMessageAction("hi", event.Meta{}),
		event.NewCmdRunAction("ls", "call-1", event.Meta{}),
	})

	m := replay.NewManager(src)
	require.NoError(t, m.Load(context.Background(), "sess-1"))

	assert.True(t, m.ShouldReplay())
	assert.Equal(t, 2, m.Remaining())

	first := m.Next()
	assert.IsType(t, &event.MessageAction{}, first)

	second := m.Next()
	assert.IsType(t, &event.CmdRunAction{}, second)

	assert.False(t, m.ShouldReplay())
	assert.Equal(t, 0, m.Remaining())
}

func TestManagerWithNilSourceNeverReplays(t *testing.T) {
	m := replay.NewManager(nil)
	require.NoError(t, m.Load(context.Background(), "sess-1"))
	assert.False(t, m.ShouldReplay())
}

func TestManagerLoadReturnsNotFoundForUnknownSession(t *testing.T) {
	src := replay.NewInMemorySource()
	m := replay.NewManager(src)
	err := m.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, replay.ErrTrajectoryNotFound)
}

func TestEncodeDecodeTrajectoryRoundTrips(t *testing.T) {
	actions := []event.Action{
		event.NewMessageAction("hello", event.Meta{}),
		event.NewCmdRunAction("echo hi", "call-1", event.Meta{}),
		event.NewFileEditAction("a.txt", "contents", "call-2", event.Meta{}),
		event.NewCreatePlanAction("plan-1", "do the thing", []string{"step one", "step two"}, event.Meta{}),
		event.NewAgentFinishAction("done", map[string]any{"ok": true}, event.Meta{}),
	}

	raw, err := replay.EncodeTrajectory(actions)
	require.NoError(t, err)

	decoded, err := replay.DecodeTrajectory(raw)
	require.NoError(t, err)
	require.Len(t, decoded, len(actions))

	assert.Equal(t, "hello", decoded[0].(*event.MessageAction).Content)
	cmd := decoded[1].(*event.CmdRunAction)
	assert.Equal(t, "echo hi", cmd.Command)
	assert.Equal(t, "call-1", cmd.ToolCallID)
	edit := decoded[2].(*event.FileEditAction)
	assert.Equal(t, "a.txt", edit.Path)
	assert.Equal(t, "contents", edit.Content)
	plan := decoded[3].(*event.CreatePlanAction)
	assert.Equal(t, "plan-1", plan.PlanID)
	assert.Equal(t, []string{"step one", "step two"}, plan.Steps)
	finish := decoded[4].(*event.AgentFinishAction)
	assert.Equal(t, "done", finish.FinalThought)
}

func TestJSONFileSourceLoadsEncodedTrajectory(t *testing.T) {
	actions := []event.Action{
		event.NewMessageAction("go", event.Meta{}),
		event.NewCmdRunAction("pwd", "call-1", event.Meta{}),
	}
	raw, err := replay.EncodeTrajectory(actions)
	require.NoError(t, err)

	dir := t.TempDir()
	path := dir + "/trajectory.json"
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	src := replay.NewJSONFileSource(path)
	loaded, err := src.Load(context.Background(), "any-session")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "go", loaded[0].(*event.MessageAction).Content)
}

func TestJSONFileSourceMissingFileReturnsNotFound(t *testing.T) {
	src := replay.NewJSONFileSource("/nonexistent/path/trajectory.json")
	_, err := src.Load(context.Background(), "sess")
	assert.ErrorIs(t, err, replay.ErrTrajectoryNotFound)
}
