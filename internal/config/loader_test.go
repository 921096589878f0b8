package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should return defaults when file is missing", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)

		assert.Equal(t, "default", cfg.Agent.Mode)
		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.History.Path)
	})

	t.Run("should load values from file", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "quill.json")
		doc := `{
			"agent": {"model": "o3", "mode": "plan"},
			"ai": {"profiles": [{"id": "p1", "provider": "openai", "api_key": "sk-x"}]},
			"data_dir": "` + tmpDir + `"
		}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "o3", cfg.Agent.Model)
		assert.Equal(t, "plan", cfg.Agent.Mode)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "p1", cfg.AI.Profiles[0].ID)
		assert.Equal(t, filepath.Join(tmpDir, "quill.log"), cfg.Logging.File)
	})

	t.Run("should reject schema-invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "quill.json")
		doc := `{"gateway": {"port": "not-a-port"}}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

		_, err := Load(path)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config document")
	})

	t.Run("should pick up OPENAI_API_KEY from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-from-env")
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)

		require.NotEmpty(t, cfg.AI.Profiles)
		assert.Equal(t, "openai", cfg.AI.Profiles[0].Provider)
		assert.Equal(t, "sk-from-env", cfg.AI.Profiles[0].APIKey)
	})
}

func TestValidateDocument(t *testing.T) {
	t.Run("should accept minimal document", func(t *testing.T) {
		assert.NoError(t, ValidateDocument([]byte(`{}`)))
	})

	t.Run("should reject bad provider enum", func(t *testing.T) {
		doc := `{"ai": {"profiles": [{"id": "x", "provider": "bard", "api_key": "k"}]}}`
		assert.Error(t, ValidateDocument([]byte(doc)))
	})
}
