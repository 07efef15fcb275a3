package convmemory_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/event"
)

func TestBuildEmitsSystemThenExamplesOnce(t *testing.T) {
	msgs := convmemory.Build(nil, convmemory.Options{
		SystemPrompt: "you are an agent",
		Examples:     "worked example",
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, convmemory.RoleSystem, msgs[0].Role)
	assert.Equal(t, convmemory.RoleUser, msgs[1].Role)
	assert.Equal(t, "worked example", msgs[1].Text)
}

func TestBuildAttachesToolCallToPrecedingAssistantAndMatchingToolMessage(t *testing.T) {
	history := []event.Event{
		event.NewCmdRunAction("ls -la", "tc-1", event.Meta{}),
		event.NewCmdOutputObservation("ls -la", "a.go\n", 0, event.ToolCallMetadata{ToolCallID: "tc-1", ToolName: "execute_bash"}, event.Meta{}),
	}
	msgs := convmemory.Build(history, convmemory.Options{})
	require.Len(t, msgs, 2)
	assert.Equal(t, convmemory.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "tc-1", msgs[0].ToolCallID)
	assert.Equal(t, convmemory.RoleTool, msgs[1].Role)
	assert.Equal(t, "tc-1", msgs[1].ToolCallID)
}

func TestBuildJoinsAdjacentSameRoleMessages(t *testing.T) {
	history := []event.Event{
		event.NewMessageAction("first thought", event.Meta{}),
		event.NewMessageAction("second thought", event.Meta{}),
	}
	msgs := convmemory.Build(history, convmemory.Options{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "first thought\n\nsecond thought", msgs[0].Text)
}

func TestBuildClipsTextToMaxMessageChars(t *testing.T) {
	history := []event.Event{
		event.NewMessageAction(strings.Repeat("x", 100), event.Meta{}),
	}
	msgs := convmemory.Build(history, convmemory.Options{MaxMessageChars: 10})
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0].Text, strings.Repeat("x", 10)))
	assert.Contains(t, msgs[0].Text, "truncated")
}

func TestBuildMarksCacheAnchorsOnLastSystemAndLastTwoUserMessages(t *testing.T) {
	history := []event.Event{
		event.NewMessageAction("u1", event.Meta{Source: event.SourceUser}),
		event.NewAgentFinishAction("done", nil, event.Meta{}),
		event.NewMessageAction("u2", event.Meta{Source: event.SourceUser}),
	}
	msgs := convmemory.Build(history, convmemory.Options{
		SystemPrompt:     "sys",
		Examples:         "ex",
		CachingSupported: true,
	})

	var systemAnchored, userAnchored int
	for _, m := range msgs {
		if !m.CacheAnchor {
			continue
		}
		switch m.Role {
		case convmemory.RoleSystem:
			systemAnchored++
		case convmemory.RoleUser:
			userAnchored++
		}
	}
	assert.Equal(t, 1, systemAnchored)
	assert.Equal(t, 2, userAnchored)
}

func TestBuildWithoutCachingMarksNoAnchors(t *testing.T) {
	msgs := convmemory.Build(nil, convmemory.Options{SystemPrompt: "sys"})
	assert.False(t, msgs[0].CacheAnchor)
}
