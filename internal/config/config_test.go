package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "primary", Provider: "openai", APIKey: "sk-test", Priority: 1},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("should accept a valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("should require at least one AI profile", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "AI profile")
	})

	t.Run("should reject unknown provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Profiles[0].Provider = "cohere"
		assert.Error(t, cfg.Validate())
	})

	t.Run("should require api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Profiles[0].APIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject invalid mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Agent.Mode = "yolo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject out-of-range temperature", func(t *testing.T) {
		cfg := validConfig()
		cfg.Agent.Temperature = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject invalid gateway port when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Gateway.Enabled = true
		cfg.Gateway.Port = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.Agent.Mode)
	assert.Equal(t, 100, cfg.Agent.MaxTurns)
	assert.True(t, cfg.History.Enabled)
	assert.False(t, cfg.Gateway.Enabled)
	assert.NotEmpty(t, cfg.String())
}
