package toolschema

import "github.com/agentctl/controlplane/plan"

// builtinTools declares the static tool set: shell, code cell, file edit,
// finish, think, browser, web-read, plan. Order here is the order
// Merge preserves for built-ins.
func builtinTools() []Tool {
	return []Tool{
		{
			Name:        "execute_bash",
			Description: "Execute a shell command in the sandbox and return its output.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {"command": {"type": "string", "description": "The bash command to run."}},
				"required": ["command"]
			}`),
		},
		{
			Name:        "execute_ipython_cell",
			Description: "Execute a code cell in the Jupyter-style interpreter and return its output.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {"code": {"type": "string", "description": "Python code to run."}},
				"required": ["code"]
			}`),
		},
		{
			Name:        "edit_file",
			Description: "Create, patch, or overwrite a file in the sandbox.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"},
					"content": {"type": "string"}
				},
				"required": ["path", "content"]
			}`),
		},
		{
			Name:        "finish",
			Description: "Signal that the current task is complete.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {
					"final_thought": {"type": "string", "description": "Summary of what was accomplished."}
				},
				"required": ["final_thought"]
			}`),
		},
		{
			Name:        "think",
			Description: "Record a private reasoning note without taking any other action.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {"thought": {"type": "string"}},
				"required": ["thought"]
			}`),
		},
		{
			Name:        "browse",
			Description: "Navigate a browser to a URL and return the resulting page content.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {"url": {"type": "string"}},
				"required": ["url"]
			}`),
		},
		{
			Name:        "web_read",
			Description: "Fetch a URL and return its text content without a full browser session.",
			ParametersSchema: []byte(`{
				"type": "object",
				"properties": {"url": {"type": "string"}},
				"required": ["url"]
			}`),
		},
		{
			Name:             plan.ToolName,
			Description:      "Create and manage structured, multi-step plans for complex tasks.",
			ParametersSchema: []byte(plan.JSONSchema),
		},
	}
}
