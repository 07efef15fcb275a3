package plan_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/plan"
)

// genSteps generates a fixed-length slice of non-empty step labels, long
// enough to exercise any of the index generators below.
func genSteps() gopter.Gen {
	return gen.SliceOfN(5, gen.AlphaString()).Map(func(steps []string) []string {
		out := make([]string, len(steps))
		for i, s := range steps {
			if s == "" {
				s = fmt.Sprintf("step-%d", i)
			}
			out[i] = s
		}
		return out
	})
}

func genTaskStatus() gopter.Gen {
	return gen.OneConstOf(event.TaskNotStarted, event.TaskInProgress, event.TaskCompleted, event.TaskBlocked)
}

func TestCreateThenGetRoundTripsStepsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("create then get preserves step content and order", prop.ForAll(
		func(steps []string) bool {
			s := plan.NewStore()
			created, err := s.Create("p1", "title", steps)
			if err != nil {
				return false
			}
			got, err := s.Get("p1")
			if err != nil {
				return false
			}
			if len(got.Steps) != len(steps) {
				return false
			}
			for i, step := range got.Steps {
				if step.Content != steps[i] || step.Content != created.Steps[i].Content {
					return false
				}
				if step.Status != event.TaskNotStarted {
					return false
				}
			}
			return true
		},
		genSteps(),
	))

	properties.TestingRun(t)
}

func TestMarkStepIsIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("marking the same step with the same status twice is a no-op the second time", prop.ForAll(
		func(steps []string, status event.TaskStatus, idx int) bool {
			idx = idx % len(steps)
			s := plan.NewStore()
			if _, err := s.Create("p1", "title", steps); err != nil {
				return false
			}
			first, err := s.MarkStep("p1", idx, status, "note", true)
			if err != nil {
				return false
			}
			second, err := s.MarkStep("p1", idx, status, "note", true)
			if err != nil {
				return false
			}
			return first.Steps[idx] == second.Steps[idx]
		},
		genSteps(),
		genTaskStatus(),
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t)
}

func TestRenderCompletedCountMatchesHeaderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("rendered completed count always equals the number of COMPLETED steps", prop.ForAll(
		func(steps []string, completedMask []bool) bool {
			s := plan.NewStore()
			p, err := s.Create("p1", "title", steps)
			if err != nil {
				return false
			}
			want := 0
			for i := range p.Steps {
				if i < len(completedMask) && completedMask[i] {
					if _, err := s.MarkStep("p1", i, event.TaskCompleted, "", false); err != nil {
						return false
					}
					want++
				}
			}
			p, err = s.Get("p1")
			if err != nil {
				return false
			}
			rendered := plan.Render(p)
			header := fmt.Sprintf("%d/%d steps completed", want, len(steps))
			return strings.Contains(rendered, header) && p.Completed() == want
		},
		genSteps(),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
