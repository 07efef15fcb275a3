package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/plan"
)

func TestCreateThenGetRoundTrips(t *testing.T) {
	s := plan.NewStore()
	created, err := s.Create("p1", "Build a CLI", []string{"design", "implement", "readme"})
	require.NoError(t, err)
	assert.Equal(t, 3, len(created.Steps))

	got, err := s.Get("p1")
	require.NoError(t, err)
	for i, step := range got.Steps {
		assert.Equal(t, created.Steps[i].Content, step.Content)
		assert.Equal(t, event.TaskNotStarted, step.Status)
	}
}

func TestCreateDuplicateIDFails(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a"})
	require.NoError(t, err)
	_, err = s.Create("p1", "t2", []string{"b"})
	assert.Error(t, err)
}

func TestUpdateSameStepsIsNoopForStatus(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a", "b"})
	require.NoError(t, err)
	_, err = s.MarkStep("p1", 0, event.TaskCompleted, "", false)
	require.NoError(t, err)

	updated, err := s.Update("p1", "", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, event.TaskCompleted, updated.Steps[0].Status)
}

func TestUpdateChangedStepResetsStatus(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a", "b"})
	require.NoError(t, err)
	_, err = s.MarkStep("p1", 1, event.TaskCompleted, "", false)
	require.NoError(t, err)

	updated, err := s.Update("p1", "", []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, event.TaskNotStarted, updated.Steps[1].Status)
}

func TestMarkStepIsIdempotent(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a"})
	require.NoError(t, err)

	first, err := s.MarkStep("p1", 0, event.TaskInProgress, "", false)
	require.NoError(t, err)
	second, err := s.MarkStep("p1", 0, event.TaskInProgress, "", false)
	require.NoError(t, err)
	assert.Equal(t, first.Steps[0].Status, second.Steps[0].Status)
}

func TestMarkStepInvalidIndex(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a"})
	require.NoError(t, err)
	_, err = s.MarkStep("p1", 5, event.TaskCompleted, "", false)
	assert.Error(t, err)
}

func TestDeleteActivePlanPicksAnotherOrNone(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, s.Delete("p1"))
	assert.Equal(t, "", s.ActiveID())
}

func TestRenderCompletedCountMatchesHeader(t *testing.T) {
	s := plan.NewStore()
	p, err := s.Create("p1", "t", []string{"a", "b", "c"})
	require.NoError(t, err)
	_, err = s.MarkStep("p1", 0, event.TaskCompleted, "", false)
	require.NoError(t, err)
	_, err = s.MarkStep("p1", 1, event.TaskCompleted, "", false)
	require.NoError(t, err)
	p, err = s.Get("p1")
	require.NoError(t, err)

	rendered := plan.Render(p)
	assert.Contains(t, rendered, "2/3 steps completed")
}

func TestGetWithNoPlanIDUsesActive(t *testing.T) {
	s := plan.NewStore()
	_, err := s.Create("p1", "t", []string{"a"})
	require.NoError(t, err)
	got, err := s.Get("")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PlanID)
}

func TestExecuteCreateReturnsCreatePlanAction(t *testing.T) {
	s := plan.NewStore()
	res, err := plan.Execute(s, plan.Args{Command: plan.CmdCreate, PlanID: "p1", Title: "t", Steps: []string{"a"}}, event.Meta{})
	require.NoError(t, err)
	require.NotNil(t, res.Action)
	cp, ok := res.Action.(*event.CreatePlanAction)
	require.True(t, ok)
	assert.Equal(t, "p1", cp.PlanID)
}

func TestExecuteListWithNoPlans(t *testing.T) {
	s := plan.NewStore()
	res, err := plan.Execute(s, plan.Args{Command: plan.CmdList}, event.Meta{})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "No plans found")
}
