// Package toolschema implements the static built-in tool descriptors and
// the merge/deduplication policy applied against Function Hub search
// results before a step's tool set is handed to the LLM.
package toolschema

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentctl/controlplane/functionhub"
)

// Tool is one LLM-function-calling tool descriptor.
type Tool struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
	// ExternalID is non-empty for tools discovered through the Function
	// Hub; empty for built-ins.
	ExternalID string
}

// Registry holds the static built-in set and performs the per-step merge
// with Function Hub results.
type Registry struct {
	builtins []Tool
}

// NewRegistry returns a Registry seeded with the built-in tool set.
func NewRegistry() *Registry {
	return &Registry{builtins: builtinTools()}
}

// Builtins returns the static tool set, in declaration order.
func (r *Registry) Builtins() []Tool {
	out := make([]Tool, len(r.builtins))
	copy(out, r.builtins)
	return out
}

// Merge combines built-ins with Function Hub results: built_in ∪
// function_hub_results, deduplicated by function name with built-ins
// always winning and later duplicates dropped. onDuplicate, if non-nil,
// is called once per dropped duplicate name (used for the controller's
// "warning" logging requirement).
func (r *Registry) Merge(hubResults []functionhub.ToolDescriptor, onDuplicate func(name string)) []Tool {
	seen := make(map[string]bool, len(r.builtins)+len(hubResults))
	merged := make([]Tool, 0, len(r.builtins)+len(hubResults))

	for _, t := range r.builtins {
		if seen[t.Name] {
			if onDuplicate != nil {
				onDuplicate(t.Name)
			}
			continue
		}
		seen[t.Name] = true
		merged = append(merged, t)
	}
	for _, hr := range hubResults {
		if seen[hr.Name] {
			if onDuplicate != nil {
				onDuplicate(hr.Name)
			}
			continue
		}
		seen[hr.Name] = true
		merged = append(merged, Tool{
			Name:             hr.Name,
			Description:      hr.Description,
			ParametersSchema: hr.ParametersSchema,
			ExternalID:       hr.ExternalID,
		})
	}
	return merged
}

// ExternalIDFor resolves a tool name back to its Function Hub external
// id, so the executor can route an LLM tool call to Execute(external_id,
// args). Returns "" for built-in tools.
func ExternalIDFor(merged []Tool, name string) string {
	for _, t := range merged {
		if t.Name == name {
			return t.ExternalID
		}
	}
	return ""
}

// ValidateArguments checks args against tool's JSON-Schema parameters.
// Built-in tools with no schema always validate.
func ValidateArguments(t Tool, args map[string]any) error {
	if len(t.ParametersSchema) == 0 {
		return nil
	}
	var schemaDoc any
	if err := json.Unmarshal(t.ParametersSchema, &schemaDoc); err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	resourceName := t.Name + ".schema.json"
	if err := compiler.AddResource(resourceName, schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return err
	}

	// Validate works on the generic JSON representation, so round-trip
	// args through JSON rather than passing the map[string]any directly —
	// numeric types (int vs float64) must match what encoding/json would
	// have produced when parsing the original tool-call payload.
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
