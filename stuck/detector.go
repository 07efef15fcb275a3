// Package stuck implements the Stuck Detector: it watches the tail of a
// session's history for repetitive action/observation patterns and
// classifies them into the fatal conditions the Plan Controller must
// raise as StuckInLoop.
package stuck

import (
	"reflect"

	"github.com/agentctl/controlplane/event"
)

// Reason classifies why the detector fired.
type Reason string

const (
	ReasonRepeatedPair      Reason = "repeated_action_observation_pair"
	ReasonRepeatedError     Reason = "repeated_error"
	ReasonStateOscillation  Reason = "state_oscillation"
)

// Result reports a detection. Detected is false when the tail shows no
// stuck pattern.
type Result struct {
	Detected bool
	Reason   Reason
	// Detail carries a human-readable description for logging.
	Detail string
}

// Detector holds the thresholds controlling each check.
type Detector struct {
	// RepeatedPairCount is the number of consecutive identical
	// action/observation pairs that triggers ReasonRepeatedPair. Spec
	// default: 3.
	RepeatedPairCount int
	// RepeatedErrorCount is the number of identical error observations
	// (not necessarily consecutive with non-error events) that triggers
	// ReasonRepeatedError.
	RepeatedErrorCount int
	// OscillationWindow bounds how far back the two-state oscillation
	// check looks.
	OscillationWindow int
}

// New returns a Detector configured with the default thresholds: 3
// repeated pairs, 3 repeated errors, a 6-event oscillation window.
func New() *Detector {
	return &Detector{RepeatedPairCount: 3, RepeatedErrorCount: 3, OscillationWindow: 6}
}

// Check inspects the tail of history (oldest first) and reports the first
// stuck pattern found, checked in the order: repeated pair, repeated
// error, oscillation.
func (d *Detector) Check(history []event.Event) Result {
	if r := d.checkRepeatedPair(history); r.Detected {
		return r
	}
	if r := d.checkRepeatedError(history); r.Detected {
		return r
	}
	if r := d.checkOscillation(history); r.Detected {
		return r
	}
	return Result{}
}

// checkRepeatedPair detects RepeatedPairCount consecutive identical
// action/observation pairs at the tail of history.
func (d *Detector) checkRepeatedPair(history []event.Event) Result {
	n := d.RepeatedPairCount
	if n <= 0 {
		n = 3
	}
	need := n * 2
	if len(history) < need {
		return Result{}
	}
	tail := history[len(history)-need:]
	firstAction, firstObs := tail[0], tail[1]
	for i := 1; i < n; i++ {
		a, o := tail[i*2], tail[i*2+1]
		if !sameShape(a, firstAction) || !sameShape(o, firstObs) {
			return Result{}
		}
	}
	return Result{
		Detected: true,
		Reason:   ReasonRepeatedPair,
		Detail:   "the same action/observation pair repeated",
	}
}

// checkRepeatedError detects RepeatedErrorCount identical error
// observations within the tail, regardless of what falls between them.
func (d *Detector) checkRepeatedError(history []event.Event) Result {
	n := d.RepeatedErrorCount
	if n <= 0 {
		n = 3
	}
	var messages []string
	for _, e := range history {
		eo, ok := e.(*event.ErrorObservation)
		if !ok {
			continue
		}
		messages = append(messages, eo.Message)
	}
	if len(messages) < n {
		return Result{}
	}
	tail := messages[len(messages)-n:]
	first := tail[0]
	for _, m := range tail[1:] {
		if m != first {
			return Result{}
		}
	}
	return Result{
		Detected: true,
		Reason:   ReasonRepeatedError,
		Detail:   "the same error observation repeated: " + first,
	}
}

// checkOscillation detects the agent alternating between exactly two
// AgentState values across the oscillation window.
func (d *Detector) checkOscillation(history []event.Event) Result {
	window := d.OscillationWindow
	if window <= 0 {
		window = 6
	}
	var states []event.AgentState
	for _, e := range history {
		sc, ok := e.(*event.AgentStateChangedObservation)
		if !ok {
			continue
		}
		states = append(states, sc.To)
	}
	if len(states) > window {
		states = states[len(states)-window:]
	}
	if len(states) < 4 {
		return Result{}
	}
	a, b := states[len(states)-1], states[len(states)-2]
	if a == b {
		return Result{}
	}
	for i := len(states) - 3; i >= 0; i-- {
		want := a
		if (len(states)-1-i)%2 == 1 {
			want = b
		}
		if states[i] != want {
			return Result{}
		}
	}
	return Result{
		Detected: true,
		Reason:   ReasonStateOscillation,
		Detail:   "agent state oscillating between two values",
	}
}

// sameShape reports whether two events are the same concrete Action or
// Observation kind with equal payload, ignoring id/cause/hidden bookkeeping
// fields so that two independently-published-but-identical events compare
// equal.
func sameShape(a, b event.Event) bool {
	if a.Type() != b.Type() {
		return false
	}
	return reflect.DeepEqual(payloadOf(a), payloadOf(b))
}

// payloadOf extracts the comparable fields of an event, stripping the
// embedded base/obsBase/actionBase bookkeeping so comparisons are on
// content alone.
func payloadOf(e event.Event) any {
	switch v := e.(type) {
	case *event.MessageAction:
		return v.Content
	case *event.CmdRunAction:
		return v.Command
	case *event.CodeCellRunAction:
		return v.Code
	case *event.FileEditAction:
		return [2]string{v.Path, v.Content}
	case *event.ToolCallAction:
		return v.Name
	case *event.RecallAction:
		return v.Query
	case *event.CmdOutputObservation:
		return [2]any{v.Output, v.ExitCode}
	case *event.FileEditObservation:
		return v.Diff
	case *event.ErrorObservation:
		return v.Message
	case *event.FunctionHubObservation:
		return [2]string{v.TextContent, v.Error}
	default:
		return e.Type()
	}
}
