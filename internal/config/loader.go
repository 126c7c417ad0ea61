package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path falls back to
// ~/.stagehand/stagehand.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".stagehand", "stagehand.json"), nil
}

// Load loads the configuration from file, falling back to defaults when
// the file does not exist. STAGEHAND_* environment variables override.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("STAGEHAND")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// API keys come from the environment when unset in the file.
	if cfg.Models.AnthropicAPIKey == "" {
		cfg.Models.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Models.OpenAIAPIKey == "" {
		cfg.Models.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".stagehand")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "stagehand.log")
	}
	if cfg.Guardrail.AuditLogFile == "" {
		cfg.Guardrail.AuditLogFile = filepath.Join(cfg.DataDir, "audit.jsonl")
	}
	if cfg.Catalog.Path == "" || cfg.Catalog.Path == "stagehand.db" {
		cfg.Catalog.Path = filepath.Join(cfg.DataDir, "stagehand.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (cfg *Config) Validate() error {
	switch cfg.Models.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown model provider: %s", cfg.Models.Provider)
	}
	if cfg.Agents.MaxIterations <= 0 {
		return fmt.Errorf("agents.max_iterations must be positive")
	}
	if cfg.Agents.MaxExecutionSeconds <= 0 {
		return fmt.Errorf("agents.max_execution_seconds must be positive")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	return nil
}

// Save writes the configuration to file.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	var raw map[string]interface{}
	if err := remarshal(cfg, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
