package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestPipelineLoggerAttachesContext(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("coordinator").
		WithRun("research", "run-1").
		WithContext("region", "eu")

	logger.Info("pipeline run started")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"component":"coordinator"`)
	assert.Contains(t, out, `"pipeline":"research"`)
	assert.Contains(t, out, `"run_id":"run-1"`)
	assert.Contains(t, out, `"region":"eu"`)
}

func TestPipelineLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestLogStepExecution(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})
	logger.LogStepExecution("summarizer", 2, 150*time.Millisecond, false, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Step execution failed")
	assert.Contains(t, out, `"agent_id":"summarizer"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}
