package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main quill configuration
type Config struct {
	// AI provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway event stream
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Transcript persistence
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Repository the agent works against
	RepoPath string `json:"repo_path" mapstructure:"repo_path"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig configures the agent session
type AgentConfig struct {
	Model            string  `json:"model" mapstructure:"model"`
	Mode             string  `json:"mode" mapstructure:"mode"` // default, async, plan
	Temperature      float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns         int     `json:"max_turns" mapstructure:"max_turns"`
	InstructionsFile string  `json:"instructions_file" mapstructure:"instructions_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds the websocket event stream configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// HistoryConfig holds transcript persistence configuration
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:       "gpt-5",
			Mode:        "default",
			Temperature: 0.7,
			MaxTokens:   4096,
			MaxTurns:    100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   false,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8173,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider != "openai" && profile.Provider != "anthropic" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: openai, anthropic)", profile.ID, profile.Provider)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
	}

	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}
	switch c.Agent.Mode {
	case "", "default", "async", "plan":
	default:
		return fmt.Errorf("invalid agent mode: %s", c.Agent.Mode)
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 1 {
		return fmt.Errorf("agent temperature must be between 0 and 1")
	}
	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent max_turns cannot be negative")
	}

	if c.Gateway.Enabled {
		if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
			return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
		}
	}

	return nil
}
