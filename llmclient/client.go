// Package llmclient defines the control plane's LLM interface:
// completion(messages, tools?, metadata?) -> response. Concrete backends
// translate convmemory.Message/toolschema.Tool into their own wire
// format; Executor and Planner agents depend only on Client.
package llmclient

import (
	"context"
	"errors"

	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/toolschema"
)

// ErrRateLimited is wrapped into the error a Client returns when the
// provider signals a rate limit, so callers can transition to RATE_LIMITED
// instead of ERROR per the error taxonomy.
var ErrRateLimited = errors.New("llmclient: rate limited")

// ToolCall is one function call the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is a completion result: free text content plus zero or more
// tool calls.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      Usage
	StopReason string
}

// Metadata carries traceability fields attached to every completion call.
type Metadata struct {
	AgentName string
	SessionID string
}

// Client issues one completion call against an LLM provider.
type Client interface {
	Complete(ctx context.Context, messages []convmemory.Message, tools []toolschema.Tool, meta Metadata) (*Response, error)
}
