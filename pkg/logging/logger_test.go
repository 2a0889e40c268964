package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, LevelInfo, cfg.Level)
	assert.False(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}

func TestNew_WritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelInfo, Output: buf})

	logger.Info().Str("page", "1").Msg("test info message")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "test info message", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
}

func TestNew_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := WithComponent(New(Config{Level: LevelInfo, Output: buf}), "paginator")

	logger.Info().Msg("test message")

	output := buf.String()
	assert.Contains(t, output, `"component":"paginator"`)
	assert.Contains(t, output, "test message")
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: LevelWarn, Output: buf})

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}
