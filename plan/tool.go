package plan

import (
	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/toolerrors"
)

// Command is one of the eight Plan Tool commands.
type Command string

const (
	CmdCreate    Command = "create"
	CmdUpdate    Command = "update"
	CmdList      Command = "list"
	CmdGet       Command = "get"
	CmdSetActive Command = "set_active"
	CmdMarkStep  Command = "mark_step"
	CmdDelete    Command = "delete"
	CmdAddResult Command = "add_result"
)

// Args is the parsed argument set for one Plan Tool invocation. Fields
// not relevant to the given Command are ignored.
type Args struct {
	Command    Command
	PlanID     string
	Title      string
	Steps      []string
	HasSteps   bool
	StepIndex  int
	StepStatus event.TaskStatus
	StepNotes  string
	HasNotes   bool
	StepResult string
}

// Result is the outcome of one Plan Tool invocation: rendered text always
// suitable as a tool-result message, plus — for the two commands the Plan
// Controller must react to specially (create, mark_step) — the Action the
// caller should publish to the event stream instead of applying locally.
//
// create and mark_step surface as Actions because the controller reacts
// to them beyond the Store mutation itself (registering active_plan_id
// and current_task_index, spawning delegates); the remaining six commands
// are synchronous queries/administrative edits with no controller-level
// side effect, so Execute applies them to Store directly.
type Result struct {
	Output string
	Action event.Action
}

// ToolName is the function name the LLM calls to invoke the Plan Tool.
const ToolName = "plan"

// Execute dispatches one Plan Tool command against store.
func Execute(store *Store, args Args, meta event.Meta) (Result, error) {
	switch args.Command {
	case CmdCreate:
		a := event.NewCreatePlanAction(args.PlanID, args.Title, args.Steps, meta)
		// Validate eagerly so a malformed create surfaces as a tool error
		// rather than silently publishing an action the controller will
		// also reject.
		if args.PlanID == "" {
			return Result{}, toolerrors.New("plan_id is required for command: create")
		}
		if args.Title == "" {
			return Result{}, toolerrors.New("title is required for command: create")
		}
		if len(args.Steps) == 0 {
			return Result{}, toolerrors.New("steps must be a non-empty list for command: create")
		}
		return Result{Output: "plan created: " + args.PlanID, Action: a}, nil

	case CmdMarkStep:
		if !event.ValidTaskStatus(args.StepStatus) && args.StepStatus != "" {
			return Result{}, toolerrors.Errorf("invalid step_status: %s", args.StepStatus)
		}
		a := event.NewMarkTaskAction(args.PlanID, args.StepIndex, string(args.StepStatus), meta)
		if args.HasNotes {
			a.Notes = args.StepNotes
			a.HasNotes = true
		}
		return Result{Output: "mark_step recorded", Action: a}, nil

	case CmdUpdate:
		var steps []string
		if args.HasSteps {
			steps = args.Steps
		}
		p, err := store.Update(args.PlanID, args.Title, steps)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: "Plan updated successfully:\n\n" + Render(p)}, nil

	case CmdList:
		return Result{Output: RenderList(store.List())}, nil

	case CmdGet:
		p, err := store.Get(args.PlanID)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: Render(p)}, nil

	case CmdSetActive:
		if err := store.SetActive(args.PlanID); err != nil {
			return Result{}, err
		}
		return Result{Output: "active plan set to: " + args.PlanID}, nil

	case CmdDelete:
		if err := store.Delete(args.PlanID); err != nil {
			return Result{}, err
		}
		return Result{Output: "plan deleted: " + args.PlanID}, nil

	case CmdAddResult:
		p, err := store.AddResult(args.PlanID, args.StepIndex, args.StepResult)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: "result added\n\n" + Render(p)}, nil

	default:
		return Result{}, toolerrors.Errorf("unknown plan command: %s", args.Command)
	}
}

// JSONSchema is the Plan Tool's parameters schema, shared with the Tool
// Schema Registry and the planner's tool set. toolschema.ValidateArguments
// can check arguments against it; Execute itself does not validate
// against the schema, and no caller in this module validates before
// calling Execute.
const JSONSchema = `{
  "type": "object",
  "properties": {
    "command": {
      "type": "string",
      "enum": ["create", "update", "list", "get", "set_active", "mark_step", "delete", "add_result"],
      "description": "The command to execute."
    },
    "plan_id": {"type": "string", "description": "Required for create, set_active, delete; optional otherwise (defaults to the active plan)."},
    "title": {"type": "string", "description": "Required for create, optional for update."},
    "steps": {"type": "array", "items": {"type": "string"}, "description": "Required for create, optional for update."},
    "step_index": {"type": "integer", "description": "Required for mark_step and add_result."},
    "step_status": {"type": "string", "enum": ["NOT_STARTED", "IN_PROGRESS", "COMPLETED", "BLOCKED"]},
    "step_notes": {"type": "string"},
    "step_result": {"type": "string"}
  },
  "required": ["command"]
}`
