// Package control implements the Plan Controller: the state machine
// that schedules a planning agent and one delegate agent per active
// task over a single shared event stream, enforces iteration/cost
// traffic control, detects stuck loops, and drives the plan/task
// lifecycle end to end.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentctl/controlplane/agent/executor"
	"github.com/agentctl/controlplane/agent/planner"
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/eventstream"
	"github.com/agentctl/controlplane/plan"
	"github.com/agentctl/controlplane/stuck"
)

// Stepper is the shape both the Executor Agent and the Planner Agent
// implement: pop a queued action, or call the LLM and queue what it
// returns.
type Stepper interface {
	Step(ctx context.Context, state *event.State) (event.Action, error)
	Reset()
}

// NewDelegate builds the Stepper a freshly spawned delegate controller
// will drive, given the plan task index it is being assigned.
type NewDelegate func(taskIndex int) Stepper

// StatusCallback reports a user-visible status update: kind is
// "info"/"error", code a short machine-readable tag, message the
// human-readable detail.
type StatusCallback func(kind, code, message string)

// Dependencies configures a Controller.
type Dependencies struct {
	Stream           *eventstream.Stream
	SessionID        string
	Agent            Stepper
	MaxIterations    int
	MaxBudgetPerTask float64
	ConfirmationMode bool
	Headless         bool
	// IsPlanner marks the top-level controller that owns the Plan Store
	// and spawns delegates; false marks a delegate controller driving one
	// task's Executor Agent.
	IsPlanner      bool
	StatusCallback StatusCallback
	// NewDelegate is required when IsPlanner is true.
	NewDelegate NewDelegate
}

var (
	// filteredOutKinds never reach state.History, regardless of whether
	// they trigger a step.
	filteredOutKinds = map[event.Kind]bool{
		event.KindNullAction:        true,
		event.KindNullObservation:   true,
		event.KindChangeAgentState:  true,
		event.KindAgentStateChanged: true,
		event.KindPlanStatus:        true,
		event.KindMarkTask:          true,
	}
	// passThroughKinds are the only events appended to a planner's history
	// while it is awaiting a delegate to resolve a task.
	passThroughKinds = map[event.Kind]bool{
		event.KindAgentFinish: true,
		event.KindAssignTask:  true,
	}
)

// Controller drives one session's state machine: a planner controller
// owns the Plan Store and spawns delegate controllers, each running the
// Executor Agent for a single task over the same shared stream.
type Controller struct {
	id        string
	stream    *eventstream.Stream
	agent     Stepper
	isPlanner bool
	headless  bool

	maxBudgetPerTask     float64
	initialMaxIterations int

	state         *event.State
	planStore     *plan.Store
	stuckDetector *stuck.Detector

	pendingAction event.Action

	statusCallback StatusCallback
	newDelegate    NewDelegate

	// delegates maps plan id -> task index -> the delegate controller
	// resolving that task. Root-controller only; enforces at-most-one
	// delegate per task.
	delegates map[string]map[int]*Controller

	sub    eventstream.Subscription
	closed bool
}

// New constructs a Controller and subscribes it to deps.Stream.
func New(deps Dependencies) (*Controller, error) {
	if deps.Stream == nil {
		return nil, errors.New("control: event stream is required")
	}
	if deps.Agent == nil {
		return nil, errors.New("control: agent is required")
	}
	if deps.SessionID == "" {
		return nil, errors.New("control: session id is required")
	}
	if deps.IsPlanner && deps.NewDelegate == nil {
		return nil, errors.New("control: a planner controller requires a delegate factory")
	}

	maxIterations := deps.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 100
	}

	c := &Controller{
		id:                   deps.SessionID,
		stream:               deps.Stream,
		agent:                deps.Agent,
		isPlanner:            deps.IsPlanner,
		headless:             deps.Headless,
		maxBudgetPerTask:     deps.MaxBudgetPerTask,
		initialMaxIterations: maxIterations,
		statusCallback:       deps.StatusCallback,
		newDelegate:          deps.NewDelegate,
		planStore:            plan.NewStore(),
		stuckDetector:        stuck.New(),
		delegates:            make(map[string]map[int]*Controller),
	}
	c.state = event.NewState(deps.SessionID, maxIterations)
	c.state.ConfirmationMode = deps.ConfirmationMode
	c.state.MaxBudgetPerTask = deps.MaxBudgetPerTask

	subscriberName := "delegate_controller"
	if deps.IsPlanner {
		subscriberName = "plan_controller"
	}
	sub, err := deps.Stream.Subscribe(subscriberName, deps.SessionID, c.onEvent)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

// State returns the controller's own session state.
func (c *Controller) State() *event.State { return c.state }

// Start publishes the first user message, transitioning the controller to
// RUNNING and scheduling the first step.
func (c *Controller) Start(ctx context.Context, content string) error {
	_, err := c.stream.Publish(ctx, event.NewMessageAction(content, event.Meta{Source: event.SourceUser}))
	return err
}

// Resume requests a transition back to RUNNING, e.g. after a traffic
// control pause or a confirmation gate.
func (c *Controller) Resume(ctx context.Context) error {
	_, err := c.stream.Publish(ctx, event.NewChangeAgentStateAction(event.AgentRunning, event.Meta{Source: event.SourceUser}))
	return err
}

// Close transitions to STOPPED (unless the caller already drove the
// controller to a terminal state) and unsubscribes from the stream.
func (c *Controller) Close(ctx context.Context, setStopState bool) error {
	if setStopState && !c.state.AgentState.Terminal() {
		c.setAgentState(ctx, event.AgentStopped)
	}
	if c.sub != nil {
		_ = c.sub.Close()
	}
	c.closed = true
	return nil
}

// onEvent is the Stream handler: append to history (subject to the
// filter/pass-through rules), dispatch to the action/observation
// handler, then decide whether to take a step.
//
// Root and delegate controllers share one event stream, so every
// controller sees every other controller's events too. While a planner
// is awaiting a delegate to resolve a task, it must stay deaf to
// anything that isn't AssignTask/AgentFinish — otherwise the delegate's
// own kickoff message and tool chatter would be misread as genuine user
// input addressed to the planner itself.
func (c *Controller) onEvent(ctx context.Context, evt event.Event) error {
	if evt.Hidden() {
		return nil
	}
	if c.isAwaitingTaskResolving() && !passThroughKinds[evt.Type()] {
		return nil
	}

	if !filteredOutKinds[evt.Type()] {
		c.state.History = append(c.state.History, evt)
	}

	var err error
	if evt.IsAction() {
		err = c.handleAction(ctx, evt.(event.Action))
	} else {
		err = c.handleObservation(ctx, evt.(event.Observation))
	}
	if err != nil {
		return err
	}

	if c.shouldStep(evt) {
		return c.runStep(ctx)
	}
	return nil
}

// shouldStep decides whether an applied event should trigger another
// agent step. There are exactly three positive triggers: a user message
// action, an agent message action while the agent isn't itself awaiting
// user input, and any observation that resolves a prior action (a
// non-zero cause). Everything else's side effects already cover the
// reaction and must not also force an extra step.
func (c *Controller) shouldStep(evt event.Event) bool {
	if evt.IsAction() {
		msg, ok := evt.(*event.MessageAction)
		if !ok {
			return false
		}
		if msg.Src() == event.SourceUser {
			return true
		}
		return msg.Src() == event.SourceAgent && c.state.AgentState != event.AgentAwaitingUserInput
	}
	return evt.Cause() > 0
}

// runStep enforces the traffic-control and stuck-loop gates before
// delegating to the agent's own step() and publishing whatever it
// returns.
func (c *Controller) runStep(ctx context.Context) error {
	if c.isAwaitingTaskResolving() {
		return nil
	}
	if c.state.AgentState != event.AgentRunning {
		return nil
	}
	if c.pendingAction != nil {
		return nil
	}

	c.state.Iteration++
	c.state.LocalIteration++

	stop := false
	if c.state.Iteration >= c.state.MaxIterations {
		stop = c.handleTrafficControl(ctx, "iteration", float64(c.state.Iteration), float64(c.state.MaxIterations))
	}
	if !stop && c.maxBudgetPerTask > 0 && c.state.Metrics.CostUSD > c.maxBudgetPerTask {
		stop = c.handleTrafficControl(ctx, "budget", c.state.Metrics.CostUSD, c.maxBudgetPerTask)
	}
	if stop {
		return nil
	}

	if r := c.stuckDetector.Check(c.state.History); r.Detected {
		c.reactToError(ctx, fmt.Errorf("agent got stuck in a loop: %s", r.Detail))
		return nil
	}

	action, err := c.agent.Step(ctx, c.state)
	if err != nil {
		if errors.Is(err, executor.ErrNoAction) || errors.Is(err, planner.ErrNoAction) {
			_, pubErr := c.stream.Publish(ctx, event.NewErrorObservation(err.Error(), event.ToolCallMetadata{}, event.Meta{Source: event.SourceAgent}))
			return pubErr
		}
		c.reactToError(ctx, err)
		return nil
	}
	if action == nil {
		return nil
	}

	if action.Runnable() {
		if c.state.ConfirmationMode && isConfirmable(action) {
			c.pendingAction = action
			c.state.ConfirmationState = event.ConfirmationAwaiting
			c.setAgentState(ctx, event.AgentAwaitingUserConfirmation)
		} else {
			c.pendingAction = action
		}
	}

	if _, isNull := action.(*event.NullAction); isNull {
		return nil
	}
	_, err = c.stream.Publish(ctx, action)
	return err
}

func isConfirmable(a event.Action) bool {
	switch a.(type) {
	case *event.CmdRunAction, *event.CodeCellRunAction:
		return true
	}
	return false
}

// handleTrafficControl applies the budget/iteration gate: headless
// sessions end in ERROR; an interactive session pauses for a user
// resume, which bumps the exhausted iteration budget (see the
// AgentRunning branch of setAgentState).
func (c *Controller) handleTrafficControl(ctx context.Context, limitType string, current, max float64) bool {
	if c.state.TrafficControlState == event.TrafficPaused {
		c.state.TrafficControlState = event.TrafficNormal
		return false
	}
	c.state.TrafficControlState = event.TrafficThrottling
	msg := fmt.Sprintf("agent reached maximum %s: current %.2f, max %.2f", limitType, current, max)
	if c.headless {
		c.reactToError(ctx, errors.New(msg))
	} else {
		if c.statusCallback != nil {
			c.statusCallback("info", "STATUS$TRAFFIC_CONTROL", msg)
		}
		c.setAgentState(ctx, event.AgentPaused)
	}
	return true
}

func (c *Controller) reactToError(ctx context.Context, err error) {
	c.setAgentState(ctx, event.AgentError)
	if c.statusCallback != nil {
		c.statusCallback("error", "STATUS$ERROR", err.Error())
	}
}

// handleAction applies the side effects of one Action for each kind the
// controller reacts to specially.
func (c *Controller) handleAction(ctx context.Context, a event.Action) error {
	switch v := a.(type) {
	case *event.ChangeAgentStateAction:
		c.setAgentState(ctx, v.NewState)
	case *event.MessageAction:
		c.handleMessageAction(ctx, v)
	case *event.ToolCallAction:
		if v.Name == plan.ToolName {
			return c.executePlanTool(ctx, v)
		}
	case *event.CreatePlanAction:
		if c.isPlanner {
			return c.createPlan(ctx, v)
		}
	case *event.MarkTaskAction:
		return c.applyMarkTask(ctx, v)
	case *event.AssignTaskAction:
		if c.isPlanner {
			return c.assignTaskToDelegate(ctx, v)
		}
	case *event.AgentFinishAction:
		return c.handleAgentFinish(ctx, v)
	case *event.AgentRejectAction:
		c.state.Metrics.Merge(c.state.LocalMetrics)
		c.setAgentState(ctx, event.AgentRejected)
	}
	return nil
}

func (c *Controller) handleMessageAction(ctx context.Context, a *event.MessageAction) {
	if a.Src() != event.SourceUser {
		return
	}
	if !c.headless {
		c.state.MaxIterations = c.state.Iteration + c.initialMaxIterations
		if c.state.TrafficControlState == event.TrafficThrottling || c.state.TrafficControlState == event.TrafficPaused {
			c.state.TrafficControlState = event.TrafficNormal
		}
	}
	if c.state.AgentState != event.AgentRunning {
		c.setAgentState(ctx, event.AgentRunning)
	}
}

// createPlan registers the plan in the controller's own Plan Store,
// mirrors it into state, and marks the first task IN_PROGRESS.
func (c *Controller) createPlan(ctx context.Context, v *event.CreatePlanAction) error {
	p, err := c.planStore.Create(v.PlanID, v.Title, v.Steps)
	if err != nil {
		_, pubErr := c.stream.Publish(ctx, event.NewErrorObservation(err.Error(), event.ToolCallMetadata{}, event.Meta{Cause: v.ID(), Source: event.SourceAgent}))
		return pubErr
	}
	c.state.Plans[p.PlanID] = p
	c.state.ActivePlanID = p.PlanID
	c.state.CurrentTaskIndex = 0

	if len(p.Steps) == 0 {
		return nil
	}
	_, err = c.stream.Publish(ctx, event.NewMarkTaskAction(p.PlanID, 0, string(event.TaskInProgress), event.Meta{Source: event.SourceAgent}))
	return err
}

// applyMarkTask persists a mark_step request (from the planner's Plan
// Tool call, or from the controller's own task-advancement logic) to the
// Plan Store, mirrors it into state, and — when it marks a task
// IN_PROGRESS on the root controller — triggers an AssignTask.
func (c *Controller) applyMarkTask(ctx context.Context, v *event.MarkTaskAction) error {
	if !c.isPlanner {
		return nil
	}
	notes, hasNotes := "", false
	if v.HasNotes {
		notes, hasNotes = v.Notes, true
	}
	p, err := c.planStore.MarkStep(v.PlanID, v.TaskIndex, event.TaskStatus(v.Status), notes, hasNotes)
	if err != nil {
		_, pubErr := c.stream.Publish(ctx, event.NewErrorObservation(err.Error(), event.ToolCallMetadata{}, event.Meta{Cause: v.ID(), Source: event.SourceAgent}))
		return pubErr
	}
	c.state.Plans[p.PlanID] = p

	if !c.isPlanner || event.TaskStatus(v.Status) != event.TaskInProgress {
		return nil
	}
	if v.TaskIndex < 0 || v.TaskIndex >= len(p.Steps) {
		return nil
	}
	c.state.CurrentTaskIndex = v.TaskIndex
	delegateID := generateDelegateID(c.id, v.TaskIndex)
	assign := event.NewAssignTaskAction(p.PlanID, v.TaskIndex, delegateID, p.Steps[v.TaskIndex].Content, plan.Render(p), event.Meta{Source: event.SourceUser})
	_, err = c.stream.Publish(ctx, assign)
	return err
}

// generateDelegateID returns a globally unique session id for a spawned
// delegate, prefixed with the owning controller's id and task index so
// it stays grep-able in logs and metrics even though the at-most-one
// invariant itself keys off planID+taskIndex, not this id.
func generateDelegateID(controllerID string, taskIndex int) string {
	prefix := strings.ReplaceAll(controllerID, ".", "-")
	return fmt.Sprintf("%s_%d_%s", prefix, taskIndex, uuid.NewString())
}

// assignTaskToDelegate spawns a fresh delegate controller for one task,
// refusing to spawn a second one for an entry that already has a
// delegate (the at-most-one-delegate-per-task invariant).
func (c *Controller) assignTaskToDelegate(ctx context.Context, v *event.AssignTaskAction) error {
	if c.delegates[v.PlanID] == nil {
		c.delegates[v.PlanID] = make(map[int]*Controller)
	}
	if _, exists := c.delegates[v.PlanID][v.TaskIndex]; exists {
		return nil
	}

	delegateMaxIterations := c.state.MaxIterations / 2
	if delegateMaxIterations < 1 {
		delegateMaxIterations = 1
	}
	delegate, err := New(Dependencies{
		Stream:           c.stream,
		SessionID:        v.DelegateID,
		Agent:            c.newDelegate(v.TaskIndex),
		MaxIterations:    delegateMaxIterations,
		MaxBudgetPerTask: c.maxBudgetPerTask,
		ConfirmationMode: c.state.ConfirmationMode,
		Headless:         false,
		IsPlanner:        false,
		StatusCallback:   c.statusCallback,
	})
	if err != nil {
		return err
	}
	c.delegates[v.PlanID][v.TaskIndex] = delegate

	prompt := fmt.Sprintf(
		"CURRENT PLAN STATUS:\n%s\nYOUR CURRENT TASK:\nYou are now working on task %d: %q. Finish it in as few steps as possible.",
		v.PlanSummary, v.TaskIndex, v.TaskContent,
	)
	return delegate.Start(ctx, prompt)
}

// handleAgentFinish branches on whether the finish came from a delegate
// (mark its task complete, advance) or from the planner with every task
// resolved (finalise). A delegate controller receiving its own
// AgentFinish simply finishes.
func (c *Controller) handleAgentFinish(ctx context.Context, v *event.AgentFinishAction) error {
	if !c.isPlanner {
		c.state.Metrics.Merge(c.state.LocalMetrics)
		c.setAgentState(ctx, event.AgentFinished)
		return nil
	}

	if c.isAllTasksResolved() {
		c.state.Metrics.Merge(c.state.LocalMetrics)
		c.setAgentState(ctx, event.AgentFinished)
		return nil
	}

	p := c.state.ActivePlan()
	if p == nil {
		return nil
	}
	idx := c.state.CurrentTaskIndex
	if idx < 0 || idx >= len(p.Steps) {
		return nil
	}

	if _, err := c.planStore.MarkStep(p.PlanID, idx, event.TaskCompleted, "", false); err != nil {
		return err
	}
	if _, err := c.planStore.AddResult(p.PlanID, idx, v.FinalThought); err != nil {
		return err
	}
	if updated, err := c.planStore.Get(p.PlanID); err == nil {
		c.state.Plans[p.PlanID] = updated
		p = updated
	}

	delete(c.delegates[p.PlanID], idx)

	if _, err := c.stream.Publish(ctx, event.NewMarkTaskAction(p.PlanID, idx, string(event.TaskCompleted), event.Meta{Source: event.SourceAgent})); err != nil {
		return err
	}

	if idx+1 < len(p.Steps) {
		c.state.CurrentTaskIndex = idx + 1
		_, err := c.stream.Publish(ctx, event.NewMarkTaskAction(p.PlanID, idx+1, string(event.TaskInProgress), event.Meta{Source: event.SourceAgent}))
		return err
	}

	_, err := c.stream.Publish(ctx, event.NewMessageAction(
		"All tasks are completed. Please accomplish the plan and send it to the user.",
		event.Meta{Source: event.SourceUser},
	))
	return err
}

func (c *Controller) isAllTasksResolved() bool {
	p := c.state.ActivePlan()
	if p == nil {
		return false
	}
	for _, t := range p.Steps {
		if t.Status != event.TaskCompleted && t.Status != event.TaskBlocked {
			return false
		}
	}
	return true
}

// isAwaitingTaskResolving reports whether any task currently has a
// delegate controller working on it. A delegate's entry is removed only
// once its AgentFinishAction has been fully applied (see
// handleAgentFinish), so existence in the map — regardless of the
// delegate's own AgentState — is sufficient: a freshly spawned delegate
// still sits in LOADING until its kickoff message is drained, and must
// count as unresolved too.
func (c *Controller) isAwaitingTaskResolving() bool {
	if !c.isPlanner {
		return false
	}
	for _, tasks := range c.delegates {
		if len(tasks) > 0 {
			return true
		}
	}
	return false
}

// executePlanTool runs a non-create/mark_step Plan Tool command (list,
// get, set_active, delete, add_result, update) synchronously against the
// controller's own Store, since — unlike shell/code/browser tools — the
// Plan Tool is part of the core rather than the external sandbox.
func (c *Controller) executePlanTool(ctx context.Context, v *event.ToolCallAction) error {
	meta := event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: v.Name}
	if c.pendingAction != nil && c.pendingAction.ID() == v.ID() {
		c.pendingAction = nil
	}

	// Plan state lives on the root controller's own Store; a delegate has
	// no business authoring plan structure, even though the tool is in its
	// merged schema like any other builtin.
	if !c.isPlanner {
		_, pubErr := c.stream.Publish(ctx, event.NewErrorObservation(
			"the plan tool is only available to the planning agent",
			meta, event.Meta{Cause: v.ID(), Source: event.SourceEnvironment}))
		return pubErr
	}

	args := planArgsFromMap(v.Arguments)
	result, err := plan.Execute(c.planStore, args, event.Meta{Cause: v.ID(), Source: event.SourceEnvironment})
	if err != nil {
		_, pubErr := c.stream.Publish(ctx, event.NewErrorObservation(err.Error(), meta, event.Meta{Cause: v.ID(), Source: event.SourceEnvironment}))
		return pubErr
	}

	// create and mark_step surface as an Action to apply rather than a
	// Store mutation already done; route it back through handleAction so
	// it gets the same plan-registration/task-advancement side effects a
	// dedicated CreatePlanAction/MarkTaskAction would.
	if result.Action != nil {
		if _, pubErr := c.stream.Publish(ctx, result.Action); pubErr != nil {
			return pubErr
		}
		return nil
	}

	if active, getErr := c.planStore.Get(""); getErr == nil {
		c.state.Plans[active.PlanID] = active
		c.state.ActivePlanID = active.PlanID
	}
	_, pubErr := c.stream.Publish(ctx, event.NewPlanStatusObservation(c.state.ActivePlanID, result.Output, event.Meta{Cause: v.ID(), Source: event.SourceEnvironment}))
	return pubErr
}

func planArgsFromMap(m map[string]any) plan.Args {
	args := plan.Args{
		Command: plan.Command(stringVal(m, "command")),
		PlanID:  stringVal(m, "plan_id"),
		Title:   stringVal(m, "title"),
	}
	if steps, ok := m["steps"]; ok {
		args.Steps = stringSliceVal(steps)
		args.HasSteps = true
	}
	args.StepIndex = intVal(m, "step_index")
	args.StepStatus = event.TaskStatus(stringVal(m, "step_status"))
	if notes, ok := m["step_notes"].(string); ok {
		args.StepNotes = notes
		args.HasNotes = true
	}
	args.StepResult = stringVal(m, "step_result")
	return args
}

func stringVal(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intVal(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringSliceVal(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, v := range items {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// handleObservation clears the pending action when a matching
// observation arrives, and syncs metrics when an error observation
// lands while the controller is already in ERROR.
func (c *Controller) handleObservation(ctx context.Context, o event.Observation) error {
	if c.pendingAction != nil && c.pendingAction.ID() == o.Cause() {
		if c.state.AgentState == event.AgentAwaitingUserConfirmation {
			return nil
		}
		c.pendingAction = nil
		if c.state.AgentState == event.AgentUserConfirmed {
			c.setAgentState(ctx, event.AgentRunning)
		}
		if c.state.AgentState == event.AgentUserRejected {
			c.setAgentState(ctx, event.AgentAwaitingUserInput)
		}
		return nil
	}
	if _, ok := o.(*event.ErrorObservation); ok {
		if c.state.AgentState == event.AgentError {
			c.state.Metrics.Merge(c.state.LocalMetrics)
		}
	}
	return nil
}

// setAgentState drives the AgentState transition side effects and
// publishes the paired AgentStateChangedObservation.
func (c *Controller) setAgentState(ctx context.Context, newState event.AgentState) {
	if newState == c.state.AgentState {
		return
	}
	old := c.state.AgentState

	switch newState {
	case event.AgentStopped, event.AgentError:
		c.state.Metrics.Merge(c.state.LocalMetrics)
		c.resetPendingAction(ctx)
	case event.AgentRunning:
		if old == event.AgentPaused && c.state.TrafficControlState == event.TrafficThrottling {
			c.state.TrafficControlState = event.TrafficNormal
			if !c.headless {
				c.state.MaxIterations += c.initialMaxIterations
			}
		}
	case event.AgentUserConfirmed, event.AgentUserRejected:
		if c.pendingAction != nil && c.pendingAction.Runnable() {
			if newState == event.AgentUserConfirmed {
				c.state.ConfirmationState = event.ConfirmationAccepted
			} else {
				c.state.ConfirmationState = event.ConfirmationRejected
			}
			c.stream.Publish(ctx, c.pendingAction) //nolint:errcheck
		}
	}

	c.state.AgentState = newState
	c.stream.Publish(ctx, event.NewAgentStateChangedObservation(old, newState, "", event.Meta{Source: event.SourceEnvironment})) //nolint:errcheck
}

// resetPendingAction clears the pending action on STOPPED/ERROR,
// synthesising an "action has not been executed" error observation when
// no matching observation was ever recorded.
func (c *Controller) resetPendingAction(ctx context.Context) {
	if c.pendingAction != nil {
		if meta, ok := toolCallMetadataOf(c.pendingAction); ok {
			pendingID := c.pendingAction.ID()
			found := false
			for _, e := range c.state.History {
				if !e.IsAction() && e.Cause() == pendingID {
					found = true
					break
				}
			}
			if !found {
				c.stream.Publish(ctx, event.NewErrorObservation( //nolint:errcheck
					"The action has not been executed.", meta, event.Meta{Cause: pendingID, Source: event.SourceAgent},
				))
			}
		}
	}
	c.pendingAction = nil
	c.agent.Reset()
}

func toolCallMetadataOf(a event.Action) (event.ToolCallMetadata, bool) {
	switch v := a.(type) {
	case *event.CmdRunAction:
		return event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: "execute_bash"}, v.ToolCallID != ""
	case *event.CodeCellRunAction:
		return event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: "execute_ipython_cell"}, v.ToolCallID != ""
	case *event.FileEditAction:
		return event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: "edit_file"}, v.ToolCallID != ""
	case *event.ToolCallAction:
		return event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: v.Name}, v.ToolCallID != ""
	case *event.RecallAction:
		return event.ToolCallMetadata{ToolCallID: v.ToolCallID, ToolName: "recall"}, v.ToolCallID != ""
	}
	return event.ToolCallMetadata{}, false
}
