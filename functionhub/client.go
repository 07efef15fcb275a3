// Package functionhub implements the remote tool-discovery client: a
// dual-query (semantic + rerank) search against an external catalog, and
// execution of the tools it returns.
package functionhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentctl/controlplane/event"
)

// ResponseType enumerates the typed results an execute call can return.
type ResponseType string

const (
	ResponseText     ResponseType = "TEXT"
	ResponseImageURL ResponseType = "IMAGE_URL"
	ResponseVideoURL ResponseType = "VIDEO_URL"
	ResponseAudioURL ResponseType = "AUDIO_URL"
	ResponseImage    ResponseType = "IMAGE"
	ResponseVideo    ResponseType = "VIDEO"
	ResponseAudio    ResponseType = "AUDIO"
	ResponseBlob     ResponseType = "BLOB"
	ResponseError    ResponseType = "ERROR"
)

// ToolDescriptor is one tool returned by search, in a shape an LLM
// function-call definition can use directly.
type ToolDescriptor struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
	ExternalID       string
}

// Options configures a Client.
type Options struct {
	// BaseURL is the Function Hub's base URL (e.g. "https://hub.example.com").
	BaseURL string
	// Wallet is sent as the wallet identifier on every request.
	Wallet string
	// APIKey is sent as the X-API-KEY header.
	APIKey string
	// HTTPClient overrides the default *http.Client. When nil, a client
	// with a 5s timeout (the default per search's bounded timeout) is used.
	HTTPClient *http.Client
	// Limiter, when set, bounds outbound search QPS to the hub.
	Limiter *rate.Limiter
}

// Client is a stateless-per-call Function Hub client.
type Client struct {
	baseURL string
	wallet  string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// New constructs a Client. BaseURL must be non-empty.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("functionhub: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		wallet:  opts.Wallet,
		apiKey:  opts.APIKey,
		http:    httpClient,
		limiter: opts.Limiter,
	}, nil
}

type searchRequest struct {
	Wallet         string `json:"wallet"`
	SearchQuery    string `json:"search_query"`
	RerankerQuery  string `json:"reranker_query"`
	TopKSearch     int    `json:"top_k_search"`
	TopKReranked   int    `json:"top_k_reranked"`
}

type searchResponse struct {
	Results []struct {
		Entity struct {
			FunctionID       string `json:"function_id"`
			FunctionMetadata struct {
				Function struct {
					Name        string          `json:"name"`
					Description string          `json:"description"`
					Parameters  json.RawMessage `json:"parameters"`
				} `json:"function"`
			} `json:"function_metadata"`
		} `json:"entity"`
	} `json:"results"`
}

// SearchOptions configures one Search call; zero values apply the
// defaults (top_k_search=20, top_k_reranked=5, timeout=5s).
type SearchOptions struct {
	TopKSearch   int
	TopKReranked int
	Timeout      time.Duration
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.TopKSearch <= 0 {
		o.TopKSearch = 20
	}
	if o.TopKReranked <= 0 {
		o.TopKReranked = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// Search ranks external tools by a semantic query and a rerank query. On
// any non-2xx response, transport failure, or timeout it returns an empty
// list rather than an error: callers proceed with built-in tools only.
func (c *Client) Search(ctx context.Context, searchQuery, rerankQuery string, opts SearchOptions) []ToolDescriptor {
	opts = opts.withDefaults()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	body, err := json.Marshal(searchRequest{
		Wallet:        c.wallet,
		SearchQuery:   searchQuery,
		RerankerQuery: rerankQuery,
		TopKSearch:    opts.TopKSearch,
		TopKReranked:  opts.TopKReranked,
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/functions/search-function-and-rerank", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil
	}

	tools := make([]ToolDescriptor, 0, len(sr.Results))
	for _, r := range sr.Results {
		fn := r.Entity.FunctionMetadata.Function
		tools = append(tools, ToolDescriptor{
			Name:             fn.Name,
			Description:      fn.Description,
			ParametersSchema: fn.Parameters,
			ExternalID:       r.Entity.FunctionID,
		})
	}
	return tools
}

type executeRequest struct {
	Wallet     string         `json:"wallet"`
	FunctionID string         `json:"function_id"`
	Arguments  map[string]any `json:"arguments"`
}

type executeResultItem struct {
	Type        ResponseType `json:"type"`
	Content     string       `json:"content"`
	Description string       `json:"description"`
}

type executeResponse struct {
	Result json.RawMessage `json:"result"`
}

// Execute invokes a hub-discovered tool by external id and flattens the
// one-or-many typed results into a single FunctionHubObservation: text is
// concatenated (image/video/audio results interleave an "[Image: ...]"
// style marker), URLs are collected per media kind, the first non-empty
// BLOB wins, and ERROR results are concatenated.
func (c *Client) Execute(ctx context.Context, functionName, externalID string, arguments map[string]any, meta event.Meta) (*event.FunctionHubObservation, error) {
	body, err := json.Marshal(executeRequest{Wallet: c.wallet, FunctionID: externalID, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("functionhub: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/functions/execute-function", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("functionhub: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("functionhub: execute %s: %w", functionName, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("functionhub: execute %s: status %d", functionName, resp.StatusCode)
	}

	var er executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("functionhub: decode response: %w", err)
	}

	items, err := decodeResultItems(er.Result)
	if err != nil {
		return nil, fmt.Errorf("functionhub: decode result: %w", err)
	}

	obs := event.NewFunctionHubObservation(functionName, externalID, meta)
	flatten(obs, items)
	return obs, nil
}

// decodeResultItems accepts either a single object or an array of objects
// per the documented "object | [object]" response shape.
func decodeResultItems(raw json.RawMessage) ([]executeResultItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []executeResultItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var single executeResultItem
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []executeResultItem{single}, nil
}

func flatten(obs *event.FunctionHubObservation, items []executeResultItem) {
	var text strings.Builder
	var errs []string
	for _, it := range items {
		switch it.Type {
		case ResponseText:
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(it.Content)
		case ResponseImageURL, ResponseImage:
			obs.ImageURLs = append(obs.ImageURLs, it.Content)
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(fmt.Sprintf("[Image: %s]", it.Content))
		case ResponseVideoURL, ResponseVideo:
			obs.VideoURLs = append(obs.VideoURLs, it.Content)
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(fmt.Sprintf("[Video: %s]", it.Content))
		case ResponseAudioURL, ResponseAudio:
			obs.AudioURLs = append(obs.AudioURLs, it.Content)
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(fmt.Sprintf("[Audio: %s]", it.Content))
		case ResponseBlob:
			if obs.Blob == "" {
				obs.Blob = it.Content
			}
		case ResponseError:
			errs = append(errs, it.Content)
		}
	}
	obs.TextContent = text.String()
	if len(errs) > 0 {
		obs.Error = strings.Join(errs, "; ")
	}
}
