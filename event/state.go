package event

// AgentState is the lifecycle state machine every controller (planner or
// delegate) drives. Every transition is paired with an
// AgentStateChangedObservation.
type AgentState string

const (
	AgentLoading                  AgentState = "LOADING"
	AgentRunning                  AgentState = "RUNNING"
	AgentPaused                   AgentState = "PAUSED"
	AgentAwaitingUserInput        AgentState = "AWAITING_USER_INPUT"
	AgentAwaitingUserConfirmation AgentState = "AWAITING_USER_CONFIRMATION"
	AgentUserConfirmed            AgentState = "USER_CONFIRMED"
	AgentUserRejected             AgentState = "USER_REJECTED"
	AgentFinished                 AgentState = "FINISHED"
	AgentRejected                 AgentState = "REJECTED"
	AgentError                    AgentState = "ERROR"
	AgentStopped                  AgentState = "STOPPED"
	AgentRateLimited              AgentState = "RATE_LIMITED"
)

// Terminal reports whether s is one of the end-of-run states (FINISHED,
// REJECTED, ERROR, STOPPED). These states are not absorbing: a new user
// message moves a controller back to RUNNING.
func (s AgentState) Terminal() bool {
	switch s {
	case AgentFinished, AgentRejected, AgentError, AgentStopped:
		return true
	}
	return false
}

// TrafficControlState is the iteration/cost budget traffic light.
type TrafficControlState string

const (
	TrafficNormal     TrafficControlState = "NORMAL"
	TrafficThrottling TrafficControlState = "THROTTLING"
	TrafficPaused     TrafficControlState = "PAUSED"
)

// ConfirmationState tracks whether a runnable action is waiting on a user
// confirmation gate before the controller will let it proceed.
type ConfirmationState string

const (
	ConfirmationNone    ConfirmationState = ""
	ConfirmationAwaiting ConfirmationState = "AWAITING_CONFIRMATION"
	ConfirmationAccepted ConfirmationState = "CONFIRMED"
	ConfirmationRejected ConfirmationState = "REJECTED"
)

// PendingAction tracks the single in-flight runnable action a controller
// is waiting to see resolved by a matching Observation.
type PendingAction struct {
	Action     Action
	ToolCallID string
	ToolName   string
}

// Metrics accumulates per-session cost/usage counters. Fields are
// deliberately simple sums; richer breakdowns belong to telemetry.Metrics.
type Metrics struct {
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64
}

// Merge adds another Metrics' counters into m. The controller uses it to
// fold its own LocalMetrics into Metrics on finish, reject, stop and
// error; a delegate's metrics are not merged into its parent's.
func (m *Metrics) Merge(other Metrics) {
	m.PromptTokens += other.PromptTokens
	m.CompletionTokens += other.CompletionTokens
	m.CostUSD += other.CostUSD
}

// State is the session-level bag a single controller (planner or
// delegate) owns exclusively. The event stream is shared; State is not.
type State struct {
	SessionID  string
	StartID    int64
	EndID      int64
	// TruncationID is the id of the first event kept after the most recent
	// history.Compress call; 0 if history has never been truncated.
	TruncationID int64

	Iteration      int
	LocalIteration int
	MaxIterations  int
	MaxBudgetPerTask float64

	ConfirmationMode  bool
	ConfirmationState ConfirmationState

	AgentState          AgentState
	TrafficControlState TrafficControlState

	Plans        map[string]*Plan
	ActivePlanID string

	CurrentTaskIndex int

	History []Event

	Metrics      Metrics
	LocalMetrics Metrics

	ExtraData map[string]any
}

// NewState returns a State ready for a fresh controller, with an empty
// plan map and AgentState LOADING.
func NewState(sessionID string, maxIterations int) *State {
	return &State{
		SessionID:           sessionID,
		MaxIterations:       maxIterations,
		AgentState:          AgentLoading,
		TrafficControlState: TrafficNormal,
		Plans:               make(map[string]*Plan),
		ExtraData:           make(map[string]any),
	}
}

// ActivePlan returns the currently active plan, or nil if none is set.
func (s *State) ActivePlan() *Plan {
	if s.ActivePlanID == "" {
		return nil
	}
	return s.Plans[s.ActivePlanID]
}
