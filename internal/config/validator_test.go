package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: "127.0.0.1:8443"},
		LLM: LLMConfig{
			PrimaryProvider:  "openai",
			PrimaryAPIKeyEnv: "OPENAI_API_KEY",
			ChiefProvider:    "anthropic",
			ChiefAPIKeyEnv:   "ANTHROPIC_API_KEY",
		},
		Decisions: DecisionsConfig{SQLitePath: "quadguard-decisions.db"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingPrimaryProvider(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LLM.PrimaryProvider = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM.PrimaryProvider")
}

func TestValidate_InvalidProviderName(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LLM.PrimaryProvider = "ollama"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai anthropic")
}

func TestValidate_MissingAPIKeyEnv(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LLM.ChiefAPIKeyEnv = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM.ChiefAPIKeyEnv")
}

func TestValidate_RefusalModelWithoutProvider(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LLM.RefusalModel = "gpt-4o-mini"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusal_model_provider")
}

func TestValidate_RefusalModelWithProviderIsValid(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LLM.RefusalModel = "gpt-4o-mini"
	cfg.LLM.RefusalModelProvider = "openai"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "trace"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.LogLevel")
}

func TestValidate_InvalidThreatEscalationThreshold(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Mediator.ThreatEscalationThreshold = 7

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mediator.ThreatEscalationThreshold")
}

func TestValidate_ZeroConfigWithDevMode(t *testing.T) {
	t.Parallel()

	// Simulate a user running "quadguard serve --dev" with no config file at all.
	cfg := &Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroConfigWithoutDevModeFails(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.SetDefaults()

	assert.Error(t, cfg.Validate())
}
