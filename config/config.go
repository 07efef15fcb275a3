// Package config loads and validates the control plane's external
// configuration surface: where to reach the Function Hub, and the
// per-agent budget/iteration knobs. Loaded from a JSON file with
// environment-variable overrides.
//
// This package is intentionally stdlib-only (encoding/json, net/url, os):
// it is glue for two small, flat structs, not a domain concern any
// library in the example pack specializes in — the pack's own config
// packages (haasonsaas-nexus, vanducng-goclaw) reach for YAML because
// their configs are deep, nested, multi-service trees; ours is two flat
// structs with three string fields, two numeric ones and two booleans, where a parser
// dependency would add surface without reducing any real complexity.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// FunctionHubConfig configures reachability for the Function Hub client.
type FunctionHubConfig struct {
	URL           string `json:"function_hub_url"`
	WalletAddress string `json:"function_hub_wallet_address"`
	APIKey        string `json:"function_hub_api_key"`
}

// Validate checks that URL parses to an absolute URL with both a scheme
// and a host.
func (c FunctionHubConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config: function hub url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("config: invalid function hub url %q: %w", c.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid function hub url format: %q", c.URL)
	}
	return nil
}

// AgentConfig carries the per-session iteration/budget knobs state.State
// is seeded from.
type AgentConfig struct {
	MaxIterations        int     `json:"max_iterations"`
	MaxBudgetPerTask      float64 `json:"max_budget_per_task"`
	ConfirmationMode     bool    `json:"confirmation_mode"`
	HistoryTruncationEnabled bool `json:"history_truncation_enabled"`
}

// DefaultAgentConfig returns the baseline agent knobs: 100 iterations,
// no budget cap, confirmation off, truncation on.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations:            100,
		MaxBudgetPerTask:         0,
		ConfirmationMode:         false,
		HistoryTruncationEnabled: true,
	}
}

// Validate checks AgentConfig's numeric invariants.
func (c AgentConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: max_iterations must be positive")
	}
	if c.MaxBudgetPerTask < 0 {
		return fmt.Errorf("config: max_budget_per_task must not be negative")
	}
	return nil
}

// LoadFunctionHubConfig reads a FunctionHubConfig from path (a JSON file).
// An empty path returns FunctionHubConfig{URL: "http://localhost:8000"}.
// Non-empty environment variables FUNCTION_HUB_URL,
// FUNCTION_HUB_WALLET_ADDRESS, and FUNCTION_HUB_API_KEY override the
// corresponding field after loading.
func LoadFunctionHubConfig(path string) (FunctionHubConfig, error) {
	cfg := FunctionHubConfig{URL: "http://localhost:8000"}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return FunctionHubConfig{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return FunctionHubConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if v := os.Getenv("FUNCTION_HUB_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("FUNCTION_HUB_WALLET_ADDRESS"); v != "" {
		cfg.WalletAddress = v
	}
	if v := os.Getenv("FUNCTION_HUB_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if err := cfg.Validate(); err != nil {
		return FunctionHubConfig{}, err
	}
	return cfg, nil
}

// LoadAgentConfig reads an AgentConfig from path (a JSON file), falling
// back to DefaultAgentConfig for an empty path.
func LoadAgentConfig(path string) (AgentConfig, error) {
	if path == "" {
		return DefaultAgentConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultAgentConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}
