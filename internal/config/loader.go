// Package config provides configuration loading for QuadGuard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for quadguard.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("quadguard")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: QUADGUARD_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("QUADGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a quadguard config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper from
// matching the binary "quadguard" (no extension) in the current directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".quadguard"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "quadguard"))
		}
	} else {
		paths = append(paths, "/etc/quadguard")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for quadguard.yaml or
// .yml. Returns the full path of the first match, or empty string if none
// found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "quadguard"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// This enables overriding nested config values via environment variables.
// Example: QUADGUARD_SERVER_HTTP_ADDR overrides server.http_addr
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("llm.primary_provider")
	_ = viper.BindEnv("llm.primary_model")
	_ = viper.BindEnv("llm.primary_api_key_env")
	_ = viper.BindEnv("llm.chief_provider")
	_ = viper.BindEnv("llm.chief_model")
	_ = viper.BindEnv("llm.chief_api_key_env")
	_ = viper.BindEnv("llm.embed_model")
	_ = viper.BindEnv("llm.request_timeout_seconds")
	_ = viper.BindEnv("llm.refusal_model_provider")
	_ = viper.BindEnv("llm.refusal_model")

	_ = viper.BindEnv("mediator.message_buffer_size")
	_ = viper.BindEnv("mediator.predicate_lookup_k")
	_ = viper.BindEnv("mediator.threat_escalation_threshold")
	_ = viper.BindEnv("mediator.force_message_check")

	_ = viper.BindEnv("ingestion.max_chunk_size")
	_ = viper.BindEnv("ingestion.cache_dir")

	_ = viper.BindEnv("intercept.refusal_threshold")
	_ = viper.BindEnv("intercept.gpt_shortcut")
	_ = viper.BindEnv("intercept.refusal_classifier_enabled")

	_ = viper.BindEnv("decisions.sqlite_path")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults (including dev defaults), validates, and returns the Config.
// CLI flag overrides (e.g. --dev) cannot be applied before validation here;
// use LoadConfigRaw for that flow.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
