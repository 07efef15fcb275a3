package toolschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/functionhub"
	"github.com/agentctl/controlplane/toolschema"
)

func TestMergePreservesBuiltinsBeforeHubResults(t *testing.T) {
	r := toolschema.NewRegistry()
	hub := []functionhub.ToolDescriptor{
		{Name: "weather", ExternalID: "ext-1"},
	}
	merged := r.Merge(hub, nil)

	names := make([]string, len(merged))
	for i, m := range merged {
		names[i] = m.Name
	}
	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate name %s", n)
		seen[n] = true
	}
	assert.Equal(t, "weather", names[len(names)-1])
	assert.Equal(t, len(r.Builtins())+1, len(merged))
}

func TestMergeDuplicateHubToolIsDropped(t *testing.T) {
	r := toolschema.NewRegistry()
	hub := []functionhub.ToolDescriptor{
		{Name: "finish", ExternalID: "ext-finish"},
	}
	var dropped []string
	merged := r.Merge(hub, func(name string) { dropped = append(dropped, name) })

	assert.Equal(t, len(r.Builtins()), len(merged))
	require.Len(t, dropped, 1)
	assert.Equal(t, "finish", dropped[0])

	assert.Equal(t, "", toolschema.ExternalIDFor(merged, "finish"))
}

func TestValidateArgumentsRejectsMissingRequired(t *testing.T) {
	r := toolschema.NewRegistry()
	var edit toolschema.Tool
	for _, t2 := range r.Builtins() {
		if t2.Name == "edit_file" {
			edit = t2
		}
	}
	require.NotEmpty(t, edit.Name)

	err := toolschema.ValidateArguments(edit, map[string]any{"path": "a.go"})
	assert.Error(t, err)

	err = toolschema.ValidateArguments(edit, map[string]any{"path": "a.go", "content": "package a"})
	assert.NoError(t, err)
}
