package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/logging"
)

func TestLoggerJSONFormatSanitizesSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})

	logger.Info("calling provider", "api_key", "sk-ant-"+strings.Repeat("x", 40))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["api_key"])
}

func TestWithRunScopesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})
	scoped := logger.WithRun("run_abc123")

	scoped.Info("agent started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run_abc123", entry["run_id"])
}

func TestNewNopDiscardsOutput(t *testing.T) {
	logger := logging.NewNop()
	assert.NotPanics(t, func() {
		logger.Info("noop")
	})
}
