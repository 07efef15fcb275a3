// Package event defines the tagged-variant event model shared by every
// component of the control plane: Actions express intent, Observations
// report outcomes, and both are published to the same append-only stream.
package event

// Source identifies who produced an event.
type Source string

const (
	SourceUser        Source = "user"
	SourceAgent        Source = "agent"
	SourceEnvironment Source = "environment"
)

// Kind enumerates every concrete Action and Observation variant. Dispatch
// over events uses an exhaustive switch on Kind rather than type hierarchies.
type Kind string

const (
	KindMessage          Kind = "message"
	KindCmdRun           Kind = "cmd_run"
	KindCodeCellRun      Kind = "code_cell_run"
	KindFileEditAction   Kind = "file_edit_action"
	KindToolCall         Kind = "tool_call"
	KindRecall           Kind = "recall"
	KindCreatePlan       Kind = "create_plan"
	KindMarkTask         Kind = "mark_task"
	KindAssignTask       Kind = "assign_task"
	KindAgentFinish      Kind = "agent_finish"
	KindAgentReject      Kind = "agent_reject"
	KindChangeAgentState Kind = "change_agent_state"
	KindNullAction       Kind = "null_action"

	KindCmdOutput          Kind = "cmd_output"
	KindFileEditObs        Kind = "file_edit_observation"
	KindError              Kind = "error"
	KindAgentStateChanged  Kind = "agent_state_changed"
	KindPlanStatus         Kind = "plan_status"
	KindFunctionHub        Kind = "function_hub"
	KindAgentCondensation  Kind = "agent_condensation"
	KindNullObservation    Kind = "null_observation"
)

// Event is the interface implemented by every Action and Observation. The
// stream assigns ID; callers never set it themselves.
type Event interface {
	// Type reports which concrete variant this event is.
	Type() Kind
	// ID returns the monotonic identifier assigned by the stream at publish
	// time. Zero (unassigned) before publication.
	ID() int64
	// Src reports who produced the event.
	Src() Source
	// Cause returns the id of the event this one responds to, or 0 if none.
	Cause() int64
	// Hidden reports whether the event is excluded from default history
	// projections (see eventstream.Stream.GetEvents filter_hidden).
	Hidden() bool
	// IsAction distinguishes Actions from Observations without a type switch.
	IsAction() bool

	// setID is called exactly once by the stream at publish time.
	setID(id int64)
}

// base carries the fields every event shares. Concrete Action/Observation
// types embed base and inherit its accessor methods.
type base struct {
	id     int64
	source Source
	cause  int64
	hidden bool
}

// AssignID sets the monotonic id the stream has assigned to e. Only the
// stream that owns the log may call this; application code must never
// construct an Event with a pre-set id.
func AssignID(e Event, id int64) { e.setID(id) }

func (b *base) ID() int64      { return b.id }
func (b *base) Src() Source    { return b.source }
func (b *base) Cause() int64   { return b.cause }
func (b *base) Hidden() bool   { return b.hidden }
func (b *base) setID(id int64) { b.id = id }

// Meta configures the shared fields of a new event. Zero value is a
// non-hidden, causeless event from SourceAgent.
type Meta struct {
	Source Source
	Cause  int64
	Hidden bool
}

func newBase(m Meta) base {
	if m.Source == "" {
		m.Source = SourceAgent
	}
	return base{source: m.Source, cause: m.Cause, hidden: m.Hidden}
}

// actionBase is embedded by every Action variant.
type actionBase struct{ base }

func (actionBase) IsAction() bool { return true }
func (actionBase) isAction()      {}

// obsBase is embedded by every Observation variant.
type obsBase struct{ base }

func (obsBase) IsAction() bool   { return false }
func (obsBase) isObservation()   {}

// Runnable reports whether an action requires an observation before the
// controller may consider it resolved. Non-runnable actions (Message,
// CreatePlan, MarkTask, AgentFinish, AgentReject, ChangeAgentState, Null)
// never block a controller's pending-action slot.
func Runnable(a Action) bool { return a.Runnable() }

// Action is an Event expressing intent to do something. Some actions are
// runnable (they produce a matching Observation); others are not.
type Action interface {
	Event
	// Runnable reports whether this action requires a matching observation
	// before it is considered resolved.
	Runnable() bool
	isAction()
}

// Observation is an Event reporting the outcome of an Action, or an
// ambient signal not tied to any particular action.
type Observation interface {
	Event
	isObservation()
}

