package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8443" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8443")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.LLM.PrimaryModel != "gpt-4o" {
		t.Errorf("PrimaryModel = %q, want %q", cfg.LLM.PrimaryModel, "gpt-4o")
	}
	if cfg.LLM.ChiefModel != "claude-sonnet-4-5" {
		t.Errorf("ChiefModel = %q, want %q", cfg.LLM.ChiefModel, "claude-sonnet-4-5")
	}
	if cfg.Mediator.ThreatEscalationThreshold != 2 {
		t.Errorf("ThreatEscalationThreshold = %d, want 2", cfg.Mediator.ThreatEscalationThreshold)
	}
	if cfg.Ingestion.MaxChunkSize != 10000 {
		t.Errorf("MaxChunkSize = %d, want 10000", cfg.Ingestion.MaxChunkSize)
	}
	if cfg.Intercept.RefusalThreshold != 2 {
		t.Errorf("RefusalThreshold = %d, want 2", cfg.Intercept.RefusalThreshold)
	}
	if cfg.Decisions.SQLitePath != "quadguard-decisions.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.Decisions.SQLitePath, "quadguard-decisions.db")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{HTTPAddr: ":9090"},
		LLM:    LLMConfig{PrimaryModel: "gpt-4o-mini"},
		Mediator: MediatorConfig{
			MessageBufferSize: 10,
		},
		Decisions: DecisionsConfig{SQLitePath: "/var/lib/quadguard/custom.db"},
	}

	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q, want %q", cfg.Server.HTTPAddr, ":9090")
	}
	if cfg.LLM.PrimaryModel != "gpt-4o-mini" {
		t.Errorf("PrimaryModel was overwritten: got %q, want %q", cfg.LLM.PrimaryModel, "gpt-4o-mini")
	}
	if cfg.Mediator.MessageBufferSize != 10 {
		t.Errorf("MessageBufferSize was overwritten: got %d, want 10", cfg.Mediator.MessageBufferSize)
	}
	if cfg.Decisions.SQLitePath != "/var/lib/quadguard/custom.db" {
		t.Errorf("SQLitePath was overwritten: got %q, want %q", cfg.Decisions.SQLitePath, "/var/lib/quadguard/custom.db")
	}
}

func TestConfig_SetDevDefaults_NoopWhenDisabled(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDevDefaults()

	if cfg.LLM.PrimaryAPIKeyEnv != "" {
		t.Errorf("expected no dev defaults applied, got PrimaryAPIKeyEnv = %q", cfg.LLM.PrimaryAPIKeyEnv)
	}
}

func TestConfig_SetDevDefaults_FillsProviders(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.LLM.PrimaryProvider != "openai" {
		t.Errorf("PrimaryProvider = %q, want %q", cfg.LLM.PrimaryProvider, "openai")
	}
	if cfg.LLM.ChiefProvider != "anthropic" {
		t.Errorf("ChiefProvider = %q, want %q", cfg.LLM.ChiefProvider, "anthropic")
	}
	if cfg.LLM.PrimaryAPIKeyEnv == "" || cfg.LLM.ChiefAPIKeyEnv == "" {
		t.Error("expected dev API key env vars to be filled in")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "quadguard.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "quadguard.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "quadguard" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "quadguard"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "quadguard.yaml")
	ymlPath := filepath.Join(dir, "quadguard.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
