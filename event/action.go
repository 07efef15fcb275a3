package event

// MessageAction carries free-form text from a user or an agent. Never
// runnable: it requires no observation.
type MessageAction struct {
	actionBase
	Content string
	// ImageURLs optionally accompanies multi-modal user messages.
	ImageURLs []string
}

func NewMessageAction(content string, m Meta) *MessageAction {
	return &MessageAction{actionBase: actionBase{newBase(m)}, Content: content}
}

func (*MessageAction) Type() Kind    { return KindMessage }
func (*MessageAction) Runnable() bool { return false }

// CmdRunAction requests execution of a shell command in the sandbox.
type CmdRunAction struct {
	actionBase
	Command string
	// ToolCallID correlates this action with the LLM tool call that produced
	// it, so the matching Observation can be rendered as the right tool
	// message by Conversation Memory.
	ToolCallID string
}

func NewCmdRunAction(command, toolCallID string, m Meta) *CmdRunAction {
	return &CmdRunAction{actionBase: actionBase{newBase(m)}, Command: command, ToolCallID: toolCallID}
}

func (*CmdRunAction) Type() Kind    { return KindCmdRun }
func (*CmdRunAction) Runnable() bool { return true }

// CodeCellRunAction requests execution of a code snippet in the Jupyter-
// style code interpreter.
type CodeCellRunAction struct {
	actionBase
	Code       string
	ToolCallID string
}

func NewCodeCellRunAction(code, toolCallID string, m Meta) *CodeCellRunAction {
	return &CodeCellRunAction{actionBase: actionBase{newBase(m)}, Code: code, ToolCallID: toolCallID}
}

func (*CodeCellRunAction) Type() Kind    { return KindCodeCellRun }
func (*CodeCellRunAction) Runnable() bool { return true }

// FileEditAction requests a file be created, patched, or overwritten.
type FileEditAction struct {
	actionBase
	Path       string
	Content    string
	ToolCallID string
}

func NewFileEditAction(path, content, toolCallID string, m Meta) *FileEditAction {
	return &FileEditAction{actionBase: actionBase{newBase(m)}, Path: path, Content: content, ToolCallID: toolCallID}
}

func (*FileEditAction) Type() Kind    { return KindFileEditAction }
func (*FileEditAction) Runnable() bool { return true }

// ToolCallAction is the generic escape hatch for tools discovered at
// runtime through the Function Hub: the executor cannot know their shape
// ahead of time, so it carries an opaque external id and argument map.
type ToolCallAction struct {
	actionBase
	ExternalID string
	Name       string
	Arguments  map[string]any
	ToolCallID string
}

func NewToolCallAction(externalID, name string, args map[string]any, toolCallID string, m Meta) *ToolCallAction {
	return &ToolCallAction{actionBase: actionBase{newBase(m)}, ExternalID: externalID, Name: name, Arguments: args, ToolCallID: toolCallID}
}

func (*ToolCallAction) Type() Kind    { return KindToolCall }
func (*ToolCallAction) Runnable() bool { return true }

// RecallAction requests a knowledge lookup (microagent content, prior
// memory). The sandbox/runtime resolves it; the control plane only routes
// it.
type RecallAction struct {
	actionBase
	Query      string
	ToolCallID string
}

func NewRecallAction(query, toolCallID string, m Meta) *RecallAction {
	return &RecallAction{actionBase: actionBase{newBase(m)}, Query: query, ToolCallID: toolCallID}
}

func (*RecallAction) Type() Kind    { return KindRecall }
func (*RecallAction) Runnable() bool { return true }

// CreatePlanAction is emitted by the Plan Tool's "create" command. It is
// not runnable: the Plan Controller applies it synchronously and never
// waits on an observation.
type CreatePlanAction struct {
	actionBase
	PlanID string
	Title  string
	Steps  []string
}

func NewCreatePlanAction(planID, title string, steps []string, m Meta) *CreatePlanAction {
	return &CreatePlanAction{actionBase: actionBase{newBase(m)}, PlanID: planID, Title: title, Steps: steps}
}

func (*CreatePlanAction) Type() Kind    { return KindCreatePlan }
func (*CreatePlanAction) Runnable() bool { return false }

// MarkTaskAction requests a status (and optionally notes) change for one
// step of a plan.
type MarkTaskAction struct {
	actionBase
	PlanID     string
	TaskIndex  int
	Status     string
	Notes      string
	HasNotes   bool
}

func NewMarkTaskAction(planID string, taskIndex int, status string, m Meta) *MarkTaskAction {
	return &MarkTaskAction{actionBase: actionBase{newBase(m)}, PlanID: planID, TaskIndex: taskIndex, Status: status}
}

func (*MarkTaskAction) Type() Kind    { return KindMarkTask }
func (*MarkTaskAction) Runnable() bool { return false }

// AssignTaskAction hands one plan step to a freshly spawned delegate
// controller.
type AssignTaskAction struct {
	actionBase
	PlanID      string
	TaskIndex   int
	DelegateID  string
	TaskContent string
	PlanSummary string
}

func NewAssignTaskAction(planID string, taskIndex int, delegateID, taskContent, planSummary string, m Meta) *AssignTaskAction {
	return &AssignTaskAction{
		actionBase:  actionBase{newBase(m)},
		PlanID:      planID,
		TaskIndex:   taskIndex,
		DelegateID:  delegateID,
		TaskContent: taskContent,
		PlanSummary: planSummary,
	}
}

func (*AssignTaskAction) Type() Kind    { return KindAssignTask }
func (*AssignTaskAction) Runnable() bool { return true }

// AgentFinishAction signals that the emitting agent (executor or planner)
// considers its work done.
type AgentFinishAction struct {
	actionBase
	FinalThought string
	Outputs      map[string]any
}

func NewAgentFinishAction(finalThought string, outputs map[string]any, m Meta) *AgentFinishAction {
	return &AgentFinishAction{actionBase: actionBase{newBase(m)}, FinalThought: finalThought, Outputs: outputs}
}

func (*AgentFinishAction) Type() Kind    { return KindAgentFinish }
func (*AgentFinishAction) Runnable() bool { return false }

// AgentRejectAction signals the agent refuses to proceed (e.g. a rejected
// confirmation).
type AgentRejectAction struct {
	actionBase
	Reason string
}

func NewAgentRejectAction(reason string, m Meta) *AgentRejectAction {
	return &AgentRejectAction{actionBase: actionBase{newBase(m)}, Reason: reason}
}

func (*AgentRejectAction) Type() Kind    { return KindAgentReject }
func (*AgentRejectAction) Runnable() bool { return false }

// ChangeAgentStateAction requests a transition of AgentState.
type ChangeAgentStateAction struct {
	actionBase
	NewState AgentState
}

func NewChangeAgentStateAction(newState AgentState, m Meta) *ChangeAgentStateAction {
	return &ChangeAgentStateAction{actionBase: actionBase{newBase(m)}, NewState: newState}
}

func (*ChangeAgentStateAction) Type() Kind    { return KindChangeAgentState }
func (*ChangeAgentStateAction) Runnable() bool { return false }

// NullAction carries no intent. It is returned by step() implementations
// when there is nothing to do (e.g. while awaiting user input).
type NullAction struct {
	actionBase
}

func NewNullAction(m Meta) *NullAction {
	return &NullAction{actionBase: actionBase{newBase(m)}}
}

func (*NullAction) Type() Kind    { return KindNullAction }
func (*NullAction) Runnable() bool { return false }
