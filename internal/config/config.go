package config

import (
	"github.com/mkarlsen/stagehand/pkg/budget"
)

// Config is the top-level stagehand configuration.
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Models    ModelsConfig    `json:"models" mapstructure:"models"`
	Agents    AgentsConfig    `json:"agents" mapstructure:"agents"`
	Budget    budget.Limits   `json:"budget" mapstructure:"budget"`
	Guardrail GuardrailConfig `json:"guardrail" mapstructure:"guardrail"`
	Catalog   CatalogConfig   `json:"catalog" mapstructure:"catalog"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	DataDir   string          `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// ModelsConfig holds model and provider configuration.
type ModelsConfig struct {
	Provider        string `json:"provider" mapstructure:"provider"` // anthropic, openai
	Default         string `json:"default" mapstructure:"default"`
	MaxTokens       int    `json:"max_tokens" mapstructure:"max_tokens"`
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
	EmbeddingModel  string `json:"embedding_model" mapstructure:"embedding_model"`
}

// AgentsConfig bounds the agent loop.
type AgentsConfig struct {
	MaxIterations        int `json:"max_iterations" mapstructure:"max_iterations"`
	MaxExecutionSeconds  int `json:"max_execution_seconds" mapstructure:"max_execution_seconds"`
	HistoryLimit         int `json:"history_limit" mapstructure:"history_limit"`
	EstimatedTokens      int `json:"estimated_tokens" mapstructure:"estimated_tokens"`
	ToolTimeoutSeconds   int `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	RecentTracesRetained int `json:"recent_traces_retained" mapstructure:"recent_traces_retained"`
}

// GuardrailConfig toggles governance stages.
type GuardrailConfig struct {
	Enabled       bool     `json:"enabled" mapstructure:"enabled"`
	AuditLogFile  string   `json:"audit_log_file" mapstructure:"audit_log_file"`
	PIIAllowTypes []string `json:"pii_allow_types" mapstructure:"pii_allow_types"`
}

// CatalogConfig points at the inventory database.
type CatalogConfig struct {
	Path string `json:"path" mapstructure:"path"`
	Seed bool   `json:"seed" mapstructure:"seed"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Models: ModelsConfig{
			Provider:       "anthropic",
			Default:        "claude-sonnet-4-5",
			MaxTokens:      4096,
			EmbeddingModel: "text-embedding-3-small",
		},
		Agents: AgentsConfig{
			MaxIterations:        10,
			MaxExecutionSeconds:  30,
			HistoryLimit:         50,
			EstimatedTokens:      1000,
			ToolTimeoutSeconds:   10,
			RecentTracesRetained: 100,
		},
		Budget: budget.DefaultLimits(),
		Guardrail: GuardrailConfig{
			Enabled: true,
		},
		Catalog: CatalogConfig{
			Path: "stagehand.db",
			Seed: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
	}
}
