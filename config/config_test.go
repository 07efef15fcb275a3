package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/config"
)

func TestLoadFunctionHubConfigDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := config.LoadFunctionHubConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.URL)
}

func TestFunctionHubConfigValidateRejectsMissingHost(t *testing.T) {
	cfg := config.FunctionHubConfig{URL: "not-a-url"}
	assert.Error(t, cfg.Validate())
}

func TestLoadFunctionHubConfigAppliesEnvOverride(t *testing.T) {
	t.Setenv("FUNCTION_HUB_URL", "https://hub.internal:9000")
	cfg, err := config.LoadFunctionHubConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://hub.internal:9000", cfg.URL)
}

func TestLoadFunctionHubConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "functionhub.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"function_hub_url":"https://hub.example.com","function_hub_wallet_address":"0xabc"}`), 0o600))

	cfg, err := config.LoadFunctionHubConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://hub.example.com", cfg.URL)
	assert.Equal(t, "0xabc", cfg.WalletAddress)
}

func TestDefaultAgentConfigValidates(t *testing.T) {
	assert.NoError(t, config.DefaultAgentConfig().Validate())
}

func TestAgentConfigValidateRejectsZeroIterations(t *testing.T) {
	cfg := config.AgentConfig{MaxIterations: 0}
	assert.Error(t, cfg.Validate())
}
