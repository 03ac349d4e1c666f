package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("debug"))
	assert.Equal(t, zapcore.WarnLevel, Level("WARNING"))
	assert.Equal(t, zapcore.ErrorLevel, Level("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, Level("verbose"))
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFormat, "")
	level, format := Resolve("", "")
	assert.Equal(t, DefaultLevel, level)
	assert.Equal(t, FormatConsole, format)

	t.Setenv(EnvLevel, "DEBUG")
	t.Setenv(EnvFormat, "json")
	level, format = Resolve("", "")
	assert.Equal(t, "DEBUG", level)
	assert.Equal(t, FormatJSON, format)

	level, format = Resolve("ERROR", "yaml")
	assert.Equal(t, "ERROR", level)
	assert.Equal(t, FormatConsole, format)
}

func TestNewTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewTo(&buf, "INFO", FormatJSON).Named("loader")
	log.Debug("hidden")
	log.Info("Loaded", zap.String("file", "a.yaml"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "loader", entry["component"])
	assert.Equal(t, "Loaded", entry["msg"])
	assert.Equal(t, "a.yaml", entry["file"])
}

func TestNewTo_Console(t *testing.T) {
	var buf bytes.Buffer
	NewTo(&buf, "WARN", FormatConsole).Warn("Old file version", zap.String("file", "a.yaml"))
	assert.Equal(t, "WARN | Old file version | {\"file\": \"a.yaml\"}\n", buf.String())
}
