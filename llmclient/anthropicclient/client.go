// Package anthropicclient implements llmclient.Client on top of the
// Anthropic Claude Messages API: encode messages/tools into
// sdk.MessageNewParams, decode the response's text/tool_use blocks back
// into llmclient.Response.
package anthropicclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentctl/controlplane/convmemory"
	"github.com/agentctl/controlplane/llmclient"
	"github.com/agentctl/controlplane/toolschema"
)

// MessagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures a Client.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client adapts llmclient.Client to the Anthropic Messages API.
type Client struct {
	msg   MessagesClient
	model string
	maxTok int
	temp  float64
}

// New builds a Client from an Anthropic Messages client and options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropicclient: messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropicclient: model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, model: opts.Model, maxTok: maxTokens, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP
// client, reading connection defaults the SDK itself resolves from the
// environment.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicclient: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{Model: model})
}

// Complete implements llmclient.Client.
func (c *Client) Complete(ctx context.Context, messages []convmemory.Message, tools []toolschema.Tool, meta llmclient.Metadata) (*llmclient.Response, error) {
	params, err := c.prepareRequest(messages, tools)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", llmclient.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropicclient: messages.new: %w", err)
	}
	return translateResponse(msg)
}

func (c *Client) prepareRequest(messages []convmemory.Message, tools []toolschema.Tool) (*sdk.MessageNewParams, error) {
	if len(messages) == 0 {
		return nil, errors.New("anthropicclient: messages are required")
	}
	sdkTools, err := encodeTools(tools)
	if err != nil {
		return nil, err
	}
	sdkMessages, system := encodeMessages(messages)
	if len(sdkMessages) == 0 {
		return nil, errors.New("anthropicclient: at least one user/assistant message is required")
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(c.maxTok),
		Messages:  sdkMessages,
		Model:     sdk.Model(c.model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(sdkTools) > 0 {
		params.Tools = sdkTools
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}
	return &params, nil
}

// encodeMessages turns the flat rendered history into Anthropic's
// alternating user/assistant message list. A RoleAssistant message
// carrying a ToolCallID becomes a tool_use block (input is reconstructed
// as an empty object since convmemory only retains the rendered text, not
// the original arguments); the paired RoleTool message becomes a
// tool_result block in the following user turn.
func encodeMessages(msgs []convmemory.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	var out []sdk.MessageParam
	var system []sdk.TextBlockParam

	for _, m := range msgs {
		switch m.Role {
		case convmemory.RoleSystem:
			if m.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Text})
			}
		case convmemory.RoleUser:
			if m.Text != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
			}
		case convmemory.RoleAssistant:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			if m.ToolCallID != "" {
				blocks = append(blocks, sdk.NewToolUseBlock(m.ToolCallID, map[string]any{}, m.ToolName))
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}
		case convmemory.RoleTool:
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}
	return out, system
}

func encodeTools(tools []toolschema.Tool) ([]sdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema, err := toolInputSchema(t.ParametersSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropicclient: tool %q schema: %w", t.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func toolInputSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) (*llmclient.Response, error) {
	if msg == nil {
		return nil, errors.New("anthropicclient: response message is nil")
	}
	resp := &llmclient.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				if resp.Content != "" {
					resp.Content += "\n"
				}
				resp.Content += block.Text
			}
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			resp.ToolCalls = append(resp.ToolCalls, llmclient.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	resp.Usage = llmclient.Usage{
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}
	return resp, nil
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "rate_limit")
}
