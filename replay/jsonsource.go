package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/agentctl/controlplane/event"
)

// actionEnvelope is the JSON-file wire format for one recorded action: a
// Kind discriminator plus the concrete type's exported fields.
type actionEnvelope struct {
	Kind    event.Kind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// InMemorySource serves trajectories registered directly in-process, for
// unit tests that don't want to touch the filesystem.
type InMemorySource struct {
	mu           sync.RWMutex
	trajectories map[string][]event.Action
}

// NewInMemorySource returns an empty InMemorySource.
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{trajectories: make(map[string][]event.Action)}
}

// Record registers actions as the trajectory for sessionID, overwriting
// any previous recording.
func (s *InMemorySource) Record(sessionID string, actions []event.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trajectories[sessionID] = actions
}

// Load implements TrajectorySource.
func (s *InMemorySource) Load(_ context.Context, sessionID string) ([]event.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actions, ok := s.trajectories[sessionID]
	if !ok {
		return nil, ErrTrajectoryNotFound
	}
	return actions, nil
}

// JSONFileSource loads a recorded trajectory from a JSON file: one array
// of {kind, payload} envelopes, written by EncodeTrajectory.
type JSONFileSource struct {
	Path string
}

// NewJSONFileSource returns a JSONFileSource reading from path.
func NewJSONFileSource(path string) *JSONFileSource {
	return &JSONFileSource{Path: path}
}

// Load implements TrajectorySource. sessionID is ignored: a JSONFileSource
// holds exactly one trajectory per file.
func (s *JSONFileSource) Load(_ context.Context, _ string) ([]event.Action, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTrajectoryNotFound
		}
		return nil, fmt.Errorf("replay: read %s: %w", s.Path, err)
	}
	return DecodeTrajectory(raw)
}

// EncodeTrajectory serializes actions to the JSON envelope format
// JSONFileSource reads.
func EncodeTrajectory(actions []event.Action) ([]byte, error) {
	envelopes := make([]actionEnvelope, 0, len(actions))
	for _, a := range actions {
		payload, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("replay: marshal %s: %w", a.Type(), err)
		}
		envelopes = append(envelopes, actionEnvelope{Kind: a.Type(), Payload: payload})
	}
	return json.Marshal(envelopes)
}

// DecodeTrajectory parses the JSON envelope format back into concrete
// Action values, dispatching on each envelope's Kind.
func DecodeTrajectory(raw []byte) ([]event.Action, error) {
	var envelopes []actionEnvelope
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("replay: parse trajectory: %w", err)
	}
	out := make([]event.Action, 0, len(envelopes))
	for i, env := range envelopes {
		a, err := decodeAction(env)
		if err != nil {
			return nil, fmt.Errorf("replay: decode action %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAction(env actionEnvelope) (event.Action, error) {
	switch env.Kind {
	case event.KindMessage:
		var v struct {
			Content   string
			ImageURLs []string
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		a := event.NewMessageAction(v.Content, event.Meta{})
		a.ImageURLs = v.ImageURLs
		return a, nil
	case event.KindCmdRun:
		var v struct{ Command, ToolCallID string }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewCmdRunAction(v.Command, v.ToolCallID, event.Meta{}), nil
	case event.KindCodeCellRun:
		var v struct{ Code, ToolCallID string }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewCodeCellRunAction(v.Code, v.ToolCallID, event.Meta{}), nil
	case event.KindFileEditAction:
		var v struct{ Path, Content, ToolCallID string }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewFileEditAction(v.Path, v.Content, v.ToolCallID, event.Meta{}), nil
	case event.KindToolCall:
		var v struct {
			ExternalID, Name, ToolCallID string
			Arguments                   map[string]any
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewToolCallAction(v.ExternalID, v.Name, v.Arguments, v.ToolCallID, event.Meta{}), nil
	case event.KindRecall:
		var v struct{ Query, ToolCallID string }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewRecallAction(v.Query, v.ToolCallID, event.Meta{}), nil
	case event.KindCreatePlan:
		var v struct {
			PlanID, Title string
			Steps         []string
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewCreatePlanAction(v.PlanID, v.Title, v.Steps, event.Meta{}), nil
	case event.KindMarkTask:
		var v struct {
			PlanID    string
			TaskIndex int
			Status    string
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewMarkTaskAction(v.PlanID, v.TaskIndex, v.Status, event.Meta{}), nil
	case event.KindAssignTask:
		var v struct {
			PlanID, DelegateID, TaskContent, PlanSummary string
			TaskIndex                                    int
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewAssignTaskAction(v.PlanID, v.TaskIndex, v.DelegateID, v.TaskContent, v.PlanSummary, event.Meta{}), nil
	case event.KindAgentFinish:
		var v struct {
			FinalThought string
			Outputs      map[string]any
		}
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewAgentFinishAction(v.FinalThought, v.Outputs, event.Meta{}), nil
	case event.KindAgentReject:
		var v struct{ Reason string }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewAgentRejectAction(v.Reason, event.Meta{}), nil
	case event.KindChangeAgentState:
		var v struct{ NewState event.AgentState }
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		return event.NewChangeAgentStateAction(v.NewState, event.Meta{}), nil
	case event.KindNullAction:
		return event.NewNullAction(event.Meta{}), nil
	default:
		return nil, fmt.Errorf("replay: unknown action kind %q", env.Kind)
	}
}
