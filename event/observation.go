package event

// ToolCallMetadata correlates an Observation with the pending Action it
// resolves, and carries enough of the original tool call for Conversation
// Memory to re-attach the result to the right assistant tool-call entry.
type ToolCallMetadata struct {
	ToolCallID string
	ToolName   string
}

// CmdOutputObservation is the result of a CmdRunAction.
type CmdOutputObservation struct {
	obsBase
	Command  string
	Output   string
	ExitCode int
	Meta     ToolCallMetadata
}

func NewCmdOutputObservation(command, output string, exitCode int, meta ToolCallMetadata, m Meta) *CmdOutputObservation {
	return &CmdOutputObservation{obsBase: obsBase{newBase(m)}, Command: command, Output: output, ExitCode: exitCode, Meta: meta}
}

func (*CmdOutputObservation) Type() Kind { return KindCmdOutput }

// FileEditObservation is the result of a FileEditAction.
type FileEditObservation struct {
	obsBase
	Path string
	Diff string
	Meta ToolCallMetadata
}

func NewFileEditObservation(path, diff string, meta ToolCallMetadata, m Meta) *FileEditObservation {
	return &FileEditObservation{obsBase: obsBase{newBase(m)}, Path: path, Diff: diff, Meta: meta}
}

func (*FileEditObservation) Type() Kind { return KindFileEditObs }

// ErrorObservation reports a recoverable failure: a malformed action, a
// transport error, or a synthetic "action never executed" marker emitted
// by the controller when it tears down a pending action on STOPPED/ERROR.
type ErrorObservation struct {
	obsBase
	Message string
	Meta    ToolCallMetadata
}

func NewErrorObservation(message string, meta ToolCallMetadata, m Meta) *ErrorObservation {
	return &ErrorObservation{obsBase: obsBase{newBase(m)}, Message: message, Meta: meta}
}

func (*ErrorObservation) Type() Kind { return KindError }

// AgentStateChangedObservation is emitted on every AgentState transition.
type AgentStateChangedObservation struct {
	obsBase
	From AgentState
	To   AgentState
	Reason string
}

func NewAgentStateChangedObservation(from, to AgentState, reason string, m Meta) *AgentStateChangedObservation {
	return &AgentStateChangedObservation{obsBase: obsBase{newBase(m)}, From: from, To: to, Reason: reason}
}

func (*AgentStateChangedObservation) Type() Kind { return KindAgentStateChanged }

// PlanStatusObservation renders the current state of a plan, for display
// or for the planner's own context.
type PlanStatusObservation struct {
	obsBase
	PlanID   string
	Rendered string
}

func NewPlanStatusObservation(planID, rendered string, m Meta) *PlanStatusObservation {
	return &PlanStatusObservation{obsBase: obsBase{newBase(m)}, PlanID: planID, Rendered: rendered}
}

func (*PlanStatusObservation) Type() Kind { return KindPlanStatus }

// FunctionHubObservation is the flattened result of one or more typed
// Function Hub execution results (see functionhub.Client.Execute).
type FunctionHubObservation struct {
	obsBase
	FunctionName string
	ExternalID   string
	TextContent  string
	ImageURLs    []string
	VideoURLs    []string
	AudioURLs    []string
	Blob         string
	Error        string
	Meta         ToolCallMetadata
}

func NewFunctionHubObservation(functionName, externalID string, m Meta) *FunctionHubObservation {
	return &FunctionHubObservation{obsBase: obsBase{newBase(m)}, FunctionName: functionName, ExternalID: externalID}
}

func (*FunctionHubObservation) Type() Kind { return KindFunctionHub }

// AgentCondensationObservation is emitted after history.Compress truncation
// completes, so the controller schedules the next step instead of
// stalling on the synthetic gap in history.
type AgentCondensationObservation struct {
	obsBase
	TruncationID int64
	StartID      int64
	Summary      string
}

func NewAgentCondensationObservation(truncationID, startID int64, summary string, m Meta) *AgentCondensationObservation {
	return &AgentCondensationObservation{obsBase: obsBase{newBase(m)}, TruncationID: truncationID, StartID: startID, Summary: summary}
}

func (*AgentCondensationObservation) Type() Kind { return KindAgentCondensation }

// NullObservation carries no payload. Used for ambient ticks and tests.
type NullObservation struct {
	obsBase
}

func NewNullObservation(m Meta) *NullObservation {
	return &NullObservation{obsBase: obsBase{newBase(m)}}
}

func (*NullObservation) Type() Kind { return KindNullObservation }
