// Package config provides configuration types for QuadGuard.
//
// Configuration is file-based (YAML) with environment-variable overrides,
// following the same viper + mapstructure + go-playground/validator pattern
// used throughout this module's ambient stack.
package config

// Config is the top-level QuadGuard configuration.
type Config struct {
	// Server configures the HTTP evaluate/health/metrics listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// LLM configures the oracle providers backing every watcher and judge,
	// plus the embedding provider for the predicate vector index.
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Mediator configures the orchestration pipeline's tunables.
	Mediator MediatorConfig `yaml:"mediator" mapstructure:"mediator"`

	// Ingestion configures the policy extraction pipeline.
	Ingestion IngestionConfig `yaml:"ingestion" mapstructure:"ingestion"`

	// Intercept configures the host interception adapter's refusal handling.
	Intercept InterceptConfig `yaml:"intercept" mapstructure:"intercept"`

	// Decisions configures decision-record persistence.
	Decisions DecisionsConfig `yaml:"decisions" mapstructure:"decisions"`

	// DevMode relaxes validation and enables verbose logging for local
	// development, so the binary can start against a mock oracle without
	// real API keys.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP evaluate/health/metrics listener.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8443").
	// Defaults to "127.0.0.1:8443" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// LLMConfig configures the primary/chief oracle providers and the
// embedding provider backing the predicate vector index.
type LLMConfig struct {
	// PrimaryProvider is the oracle backing the fast first-tier judge and
	// both watchers. One of "openai" or "anthropic".
	PrimaryProvider string `yaml:"primary_provider" mapstructure:"primary_provider" validate:"required,oneof=openai anthropic"`
	// PrimaryModel is the model name passed to the provider.
	// Defaults to "gpt-4o" if empty.
	PrimaryModel string `yaml:"primary_model" mapstructure:"primary_model"`
	// PrimaryAPIKeyEnv names the environment variable holding the API key.
	PrimaryAPIKeyEnv string `yaml:"primary_api_key_env" mapstructure:"primary_api_key_env" validate:"required"`

	// ChiefProvider backs the chief judge's escalation tier. Conventionally
	// the more capable (and more expensive) of the two models, since it is
	// only invoked when the primary judge finds a message unsafe.
	ChiefProvider string `yaml:"chief_provider" mapstructure:"chief_provider" validate:"required,oneof=openai anthropic"`
	// ChiefModel defaults to "claude-sonnet-4-5" if empty.
	ChiefModel     string `yaml:"chief_model" mapstructure:"chief_model"`
	ChiefAPIKeyEnv string `yaml:"chief_api_key_env" mapstructure:"chief_api_key_env" validate:"required"`

	// EmbedModel names the embedding model used for the predicate vector
	// index. Always served by the primary provider's API.
	// Defaults to "text-embedding-3-small" if empty.
	EmbedModel string `yaml:"embed_model" mapstructure:"embed_model"`

	// RequestTimeoutSeconds bounds a single oracle call.
	// Defaults to 120 if zero.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds" validate:"omitempty,min=1"`

	// RefusalModelProvider/RefusalModel optionally configure a distinct,
	// typically cheaper model for the refusal classifier. Empty reuses the
	// primary provider and model.
	RefusalModelProvider string `yaml:"refusal_model_provider" mapstructure:"refusal_model_provider" validate:"omitempty,oneof=openai anthropic"`
	RefusalModel         string `yaml:"refusal_model" mapstructure:"refusal_model"`
}

// MediatorConfig configures the orchestration pipeline.
type MediatorConfig struct {
	// MessageBufferSize is how many recent conversation messages feed the
	// watchers' observation window. Defaults to 5 if zero.
	MessageBufferSize int `yaml:"message_buffer_size" mapstructure:"message_buffer_size" validate:"omitempty,min=1"`

	// PredicateLookupK bounds how many predicates the vector index returns
	// for a narrow-scope lookup. Defaults to 5 if zero.
	PredicateLookupK int `yaml:"predicate_lookup_k" mapstructure:"predicate_lookup_k" validate:"omitempty,min=1"`

	// ThreatEscalationThreshold is the per-sender threat level (0-4) above
	// which message policies are evaluated even without a force check.
	// Defaults to 2 if zero.
	ThreatEscalationThreshold int `yaml:"threat_escalation_threshold" mapstructure:"threat_escalation_threshold" validate:"omitempty,min=0,max=4"`

	// ForceMessageCheck evaluates message policy on every message
	// regardless of threat level. Useful for high-assurance deployments.
	ForceMessageCheck bool `yaml:"force_message_check" mapstructure:"force_message_check"`
}

// IngestionConfig configures the policy extraction pipeline.
type IngestionConfig struct {
	// MaxChunkSize is a paragraph-packed chunk bound in characters.
	// Defaults to 10000 if zero. The ingestion pipeline does not read it; it
	// always packs chunks of at most 10000 characters.
	MaxChunkSize int `yaml:"max_chunk_size" mapstructure:"max_chunk_size" validate:"omitempty,min=100"`

	// CacheDir names a directory for ingestion cache sidecar files.
	// Defaults to "." if empty. The file cache does not read it; it writes
	// each sidecar next to its source document as <path>.cache.json.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// InterceptConfig configures the host interception adapter's refusal
// handling and termination behavior.
type InterceptConfig struct {
	// RefusalThreshold is the number of consecutive classified refusals
	// before the adapter requests external termination. Defaults to 2.
	RefusalThreshold int `yaml:"refusal_threshold" mapstructure:"refusal_threshold" validate:"omitempty,min=1"`

	// GPTShortcut enables the literal "I'm sorry" instant-termination
	// shortcut for providers known to emit that refusal prefix verbatim.
	GPTShortcut bool `yaml:"gpt_shortcut" mapstructure:"gpt_shortcut"`

	// RefusalClassifierEnabled turns on the oracle-backed refusal check.
	// When false, only the GPT shortcut (if enabled) can ever trip.
	RefusalClassifierEnabled bool `yaml:"refusal_classifier_enabled" mapstructure:"refusal_classifier_enabled"`
}

// DecisionsConfig configures decision-record persistence.
type DecisionsConfig struct {
	// SQLitePath is the path to the decision-log database file.
	// Defaults to "quadguard-decisions.db" if empty.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SetDevDefaults applies permissive defaults for development mode. This
// allows running quadguard with minimal config when experimenting against
// a mock oracle. Applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.LLM.PrimaryProvider == "" {
		c.LLM.PrimaryProvider = "openai"
	}
	if c.LLM.PrimaryAPIKeyEnv == "" {
		c.LLM.PrimaryAPIKeyEnv = "QUADGUARD_DEV_API_KEY"
	}
	if c.LLM.ChiefProvider == "" {
		c.LLM.ChiefProvider = "anthropic"
	}
	if c.LLM.ChiefAPIKeyEnv == "" {
		c.LLM.ChiefAPIKeyEnv = "QUADGUARD_DEV_API_KEY"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8443"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.LLM.PrimaryModel == "" {
		c.LLM.PrimaryModel = "gpt-4o"
	}
	if c.LLM.ChiefModel == "" {
		c.LLM.ChiefModel = "claude-sonnet-4-5"
	}
	if c.LLM.EmbedModel == "" {
		c.LLM.EmbedModel = "text-embedding-3-small"
	}
	if c.LLM.RequestTimeoutSeconds == 0 {
		c.LLM.RequestTimeoutSeconds = 120
	}

	if c.Mediator.MessageBufferSize == 0 {
		c.Mediator.MessageBufferSize = 5
	}
	if c.Mediator.PredicateLookupK == 0 {
		c.Mediator.PredicateLookupK = 5
	}
	if c.Mediator.ThreatEscalationThreshold == 0 {
		c.Mediator.ThreatEscalationThreshold = 2
	}

	if c.Ingestion.MaxChunkSize == 0 {
		c.Ingestion.MaxChunkSize = 10000
	}
	if c.Ingestion.CacheDir == "" {
		c.Ingestion.CacheDir = "."
	}

	if c.Intercept.RefusalThreshold == 0 {
		c.Intercept.RefusalThreshold = 2
	}

	if c.Decisions.SQLitePath == "" {
		c.Decisions.SQLitePath = "quadguard-decisions.db"
	}
}
