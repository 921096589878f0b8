package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "logs", "quill.log")

		l, err := New(Config{
			Level: "debug",
			File:  logFile,
		})
		require.NoError(t, err)
		defer l.Close()

		l.Info().Str("key", "value").Msg("test message")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test message")
		assert.Contains(t, string(data), `"key":"value"`)
	})

	t.Run("should fall back to info on invalid level", func(t *testing.T) {
		l, err := New(Config{Level: "nonsense"})
		require.NoError(t, err)
		defer l.Close()

		assert.NotNil(t, l.GetZerolog())
	})

	t.Run("should redact secrets in file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "quill.log")

		l, err := New(Config{
			Level:     "info",
			File:      logFile,
			Redaction: true,
		})
		require.NoError(t, err)
		defer l.Close()

		l.Info().Msg("key is sk-abcdefghijklmnopqrstuvwxyz123456")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz123456")
		assert.Contains(t, string(data), "[REDACTED]")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Redaction)
	assert.False(t, cfg.Console)
}
