package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "loom.log")

	l, err := New(Config{
		Level: "debug",
		File:  logPath,
	})
	require.NoError(t, err)
	defer l.Close()

	l.Info().Str("graph", "pipeline").Msg("run started")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "run started")
	assert.Contains(t, string(content), "pipeline")
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "nonsense", Console: false})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
}

func TestConfiguredPatternsExtendRedaction(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "loom.log")

	l, err := New(Config{
		Level:     "info",
		File:      logPath,
		Redaction: true,
		Patterns:  []string{`ticket-[0-9]{4}`},
	})
	require.NoError(t, err)
	defer l.Close()

	l.Info().Msg("escalating ticket-1234 to support")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[REDACTED]")
	assert.NotContains(t, string(content), "ticket-1234")
}

func TestNewRejectsInvalidRedactPattern(t *testing.T) {
	_, err := New(Config{
		Level:     "info",
		Console:   false,
		Redaction: true,
		Patterns:  []string{"("},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redaction pattern")
}

func TestRedactionScrubsAPIKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "loom.log")

	l, err := New(Config{
		Level:     "info",
		File:      logPath,
		Redaction: true,
	})
	require.NoError(t, err)
	defer l.Close()

	l.Info().Msg("using key sk-ant-REDACTED")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[REDACTED]")
	assert.NotContains(t, string(content), "sk-ant-REDACTED")
}
