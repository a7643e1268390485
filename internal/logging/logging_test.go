package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, "info", "json"), "discovery")

	logger.Debug("hidden")
	logger.Info("device found", "addr", "192.168.1.50")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "device found", line["msg"])
	assert.Equal(t, "discovery", line["component"])
	assert.Equal(t, "192.168.1.50", line["addr"])
}

func TestNew_AutoOnNonFileIsText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "auto").Debug("probing", "host", "10.0.0.1")

	assert.Contains(t, buf.String(), "msg=probing")
	assert.Contains(t, buf.String(), "host=10.0.0.1")
}
