// Package plan implements the Plan Store and the Plan Tool: the
// in-memory plan/task state machine and the single LLM-callable function
// that mutates it.
package plan

import (
	"fmt"
	"sync"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/toolerrors"
)

// Store is the in-memory mapping of plan id to Plan. It is owned
// exclusively by one Plan Controller; the Plan Tool is its only mutator.
//
// Invariant maintained on every mutation: len(steps) == len(statuses) ==
// len(notes) == len(results), restored by prefix-padding whenever the
// ordered step list changes shape.
type Store struct {
	mu        sync.Mutex
	plans     map[string]*event.Plan
	activeID  string
}

// NewStore returns an empty Store with no active plan.
func NewStore() *Store {
	return &Store{plans: make(map[string]*event.Plan)}
}

// ActiveID returns the currently active plan id, or "" if none is set.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Store) resolveID(planID string) (string, error) {
	if planID == "" {
		planID = s.activeID
	}
	if planID == "" {
		return "", toolerrors.New("no active plan and no plan_id given")
	}
	if _, ok := s.plans[planID]; !ok {
		return "", toolerrors.Errorf("plan not found with id: %s", planID)
	}
	return planID, nil
}

// Create registers a new plan. Fails if planID already exists, title is
// empty, or steps is empty.
func (s *Store) Create(planID, title string, steps []string) (*event.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if planID == "" {
		return nil, toolerrors.New("plan_id is required for command: create")
	}
	if _, exists := s.plans[planID]; exists {
		return nil, toolerrors.Errorf("plan with id %q already exists; use update to modify it", planID)
	}
	if title == "" {
		return nil, toolerrors.New("title is required for command: create")
	}
	if len(steps) == 0 {
		return nil, toolerrors.New("steps must be a non-empty list for command: create")
	}

	tasks := make([]event.Task, len(steps))
	for i, content := range steps {
		tasks[i] = event.Task{Content: content, Status: event.TaskNotStarted}
	}
	p := &event.Plan{PlanID: planID, Title: title, Steps: tasks}
	s.plans[planID] = p
	s.activeID = planID
	return p.Clone(), nil
}

// Update mutates title and/or the step list of a plan. Steps whose text
// is unchanged at the same index keep their status/notes/result; every
// other index is reset to NOT_STARTED with empty notes/result.
func (s *Store) Update(planID, title string, steps []string) (*event.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(planID)
	if err != nil {
		return nil, err
	}
	p := s.plans[id]

	if title != "" {
		p.Title = title
	}
	if steps != nil {
		old := p.Steps
		next := make([]event.Task, len(steps))
		for i, content := range steps {
			if i < len(old) && old[i].Content == content {
				next[i] = old[i]
			} else {
				next[i] = event.Task{Content: content, Status: event.TaskNotStarted}
			}
		}
		p.Steps = next
	}
	return p.Clone(), nil
}

// List returns every known plan id, title, "completed/total" progress,
// and whether it is the active plan.
type ListEntry struct {
	PlanID    string
	Title     string
	Completed int
	Total     int
	Active    bool
}

func (s *Store) List() []ListEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]ListEntry, 0, len(s.plans))
	for id, p := range s.plans {
		entries = append(entries, ListEntry{
			PlanID:    id,
			Title:     p.Title,
			Completed: p.Completed(),
			Total:     len(p.Steps),
			Active:    id == s.activeID,
		})
	}
	return entries
}

// Get returns the resolved plan (active plan if planID is empty).
func (s *Store) Get(planID string) (*event.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(planID)
	if err != nil {
		return nil, err
	}
	return s.plans[id].Clone(), nil
}

// SetActive switches the current plan. planID must already exist.
func (s *Store) SetActive(planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if planID == "" {
		return toolerrors.New("plan_id is required for command: set_active")
	}
	if _, ok := s.plans[planID]; !ok {
		return toolerrors.Errorf("plan not found with id: %s", planID)
	}
	s.activeID = planID
	return nil
}

// MarkStep sets a step's status and/or notes.
func (s *Store) MarkStep(planID string, stepIndex int, status event.TaskStatus, notes string, hasNotes bool) (*event.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(planID)
	if err != nil {
		return nil, err
	}
	p := s.plans[id]
	if stepIndex < 0 || stepIndex >= len(p.Steps) {
		return nil, toolerrors.Errorf("invalid step_index: %d, valid range is 0 to %d", stepIndex, len(p.Steps)-1)
	}
	if status != "" {
		if !event.ValidTaskStatus(status) {
			return nil, toolerrors.Errorf("invalid step_status: %s", status)
		}
		p.Steps[stepIndex].Status = status
	}
	if hasNotes {
		p.Steps[stepIndex].Notes = notes
	}
	return p.Clone(), nil
}

// Delete removes a plan. If it was active, an arbitrary remaining plan
// (or none) becomes active.
func (s *Store) Delete(planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if planID == "" {
		return toolerrors.New("plan_id is required for command: delete")
	}
	if _, ok := s.plans[planID]; !ok {
		return toolerrors.Errorf("plan not found with id: %s", planID)
	}
	delete(s.plans, planID)
	if s.activeID == planID {
		s.activeID = ""
		for id := range s.plans {
			s.activeID = id
			break
		}
	}
	return nil
}

// AddResult records a step's result string.
func (s *Store) AddResult(planID string, stepIndex int, result string) (*event.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(planID)
	if err != nil {
		return nil, err
	}
	p := s.plans[id]
	if stepIndex < 0 || stepIndex >= len(p.Steps) {
		return nil, toolerrors.Errorf("invalid step_index: %d, valid range is 0 to %d", stepIndex, len(p.Steps)-1)
	}
	p.Steps[stepIndex].Result = result
	p.Steps[stepIndex].HasResult = true
	return p.Clone(), nil
}

// fmtProgress renders "n/m steps completed", used by both List and Render.
func fmtProgress(completed, total int) string {
	return fmt.Sprintf("%d/%d steps completed", completed, total)
}
