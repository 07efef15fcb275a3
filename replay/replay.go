// Package replay implements the Replay Manager: feeding a pre-recorded
// sequence of actions in place of a live LLM call whenever
// ShouldReplay() is true. TrajectorySource abstracts where that recorded
// sequence comes from; Manager is the stateful cursor an
// Executor/Planner Agent consults on every step.
package replay

import (
	"context"
	"errors"

	"github.com/agentctl/controlplane/event"
)

// ErrTrajectoryNotFound is returned by a TrajectorySource when no
// recording exists for the given session.
var ErrTrajectoryNotFound = errors.New("replay: trajectory not found")

// TrajectorySource loads a pre-recorded sequence of actions for a
// session. Implementations: InMemorySource/JSONFileSource for tests and
// local replays, mongosource.Source (replay/mongosource) for teams
// persisting recordings centrally.
type TrajectorySource interface {
	Load(ctx context.Context, sessionID string) ([]event.Action, error)
}

// Manager substitutes step()'s LLM call with the next action from a
// recorded trajectory while one is loaded and not yet exhausted.
type Manager struct {
	source  TrajectorySource
	actions []event.Action
	cursor  int
	loaded  bool
}

// NewManager returns a Manager backed by source. source may be nil, in
// which case ShouldReplay always reports false.
func NewManager(source TrajectorySource) *Manager {
	return &Manager{source: source}
}

// Load fetches and caches the recorded trajectory for sessionID. Call
// once before the first step() of a replayed session.
func (m *Manager) Load(ctx context.Context, sessionID string) error {
	if m.source == nil {
		return nil
	}
	actions, err := m.source.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	m.actions = actions
	m.cursor = 0
	m.loaded = true
	return nil
}

// ShouldReplay reports whether the next step() call should consume a
// recorded action instead of calling the LLM.
func (m *Manager) ShouldReplay() bool {
	return m.loaded && m.cursor < len(m.actions)
}

// Next returns the next recorded action and advances the cursor. Callers
// must check ShouldReplay first; Next panics if the trajectory is
// exhausted.
func (m *Manager) Next() event.Action {
	if !m.ShouldReplay() {
		panic("replay: Next called with no recorded action remaining")
	}
	a := m.actions[m.cursor]
	m.cursor++
	return a
}

// Remaining reports how many recorded actions are left unconsumed.
func (m *Manager) Remaining() int {
	if !m.loaded {
		return 0
	}
	return len(m.actions) - m.cursor
}
