package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel("warn"))
	ctx := context.Background()

	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", map[string]interface{}{"agent": "payroll"})
	logger.Error(ctx, "error message", map[string]interface{}{"attempt": 2})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "warn message", lines[0]["message"])
	assert.Equal(t, "payroll", lines[0]["agent"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, float64(2), lines[1]["attempt"])
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf)).With(map[string]interface{}{"component": "observe"})

	logger.Info(context.Background(), "hello", map[string]interface{}{"n": 1})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "observe", lines[0]["component"])
	assert.Equal(t, float64(1), lines[0]["n"])
}

func TestLoggerTraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.Info(ctx, "traced", nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", lines[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", lines[0]["span_id"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithFormat("console"))
	logger.Info(context.Background(), "console line", map[string]interface{}{"agent": "payroll"})

	out := buf.String()
	assert.Contains(t, out, "console line")
	assert.Contains(t, out, "agent=payroll")
	assert.NotContains(t, out, "\x1b[")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), "dropped", map[string]interface{}{"x": 1})
		logger.With(map[string]interface{}{"y": 2}).Info(context.Background(), "dropped", nil)
	})
}
