package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptme/receiptd/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(config.LoggingConfig{Level: "info", Format: "json"}, &buf), "worker")

	logger.Debug().Msg("hidden")
	logger.Info().Str("message_id", "abc").Msg("printed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "printed", entry["message"])
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "abc", entry["message_id"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "console"}, &buf)

	logger.Debug().Msg("visible")

	assert.Contains(t, buf.String(), "visible")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestTextFallsBackToJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	assert.NotContains(t, buf.String(), "hidden")
}
