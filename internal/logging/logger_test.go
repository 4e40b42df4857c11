package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(level)
	logger.SetOutput(log.New(&buf, "", 0))
	return logger, &buf
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"error allowed at debug", LevelDebug, LevelError, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info allowed at info", LevelInfo, LevelInfo, true},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(tt.minLevel)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("test message")
			case LevelInfo:
				logger.Info("test message")
			case LevelWarn:
				logger.Warn("test message")
			case LevelError:
				logger.Error("test message")
			}

			if tt.shouldLog {
				assert.Contains(t, buf.String(), tt.logLevel.String()+": test message")
			} else {
				assert.Empty(t, buf.String())
			}
			assert.Equal(t, tt.shouldLog, logger.Enabled(tt.logLevel))
		})
	}
}

func TestLoggerFieldsAreSorted(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.WithFields(map[string]interface{}{
		"zeta":  1,
		"alpha": "a",
	}).With("mid", true).Warn("merged push", "dropped", 2)

	assert.Equal(t, "WARN: merged push | alpha=a dropped=2 mid=true zeta=1\n", buf.String())
}

func TestLoggerInlineKeyVals(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Warn("submission failed", "error", errors.New("connection refused"), "attempt", 3, "dangling")

	output := buf.String()
	assert.Contains(t, output, `error="connection refused"`)
	assert.Contains(t, output, "attempt=3")
	assert.NotContains(t, output, "dangling")
}

func TestChildSharesLevelWithParent(t *testing.T) {
	logger, buf := newTestLogger(LevelWarn)
	child := logger.With("component", "stream")

	child.Info("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(LevelDebug)
	child.Info("visible")
	assert.Contains(t, buf.String(), "INFO: visible | component=stream")
}

func TestParentUnmodifiedByChild(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	_ = logger.With("item", "abc")
	logger.Info("parent")

	assert.NotContains(t, buf.String(), "item=abc")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"simple string", "hello", "hello"},
		{"empty string", "", `""`},
		{"string with spaces", "hello world", `"hello world"`},
		{"string with equals", "a=b", `"a=b"`},
		{"integer", 42, "42"},
		{"error", errors.New("oops"), `"oops"`},
		{"stringer", 1500 * time.Millisecond, "1.5s"},
		{"level", LevelInfo, "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatValue(tt.input))
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
	} {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))
	SetLevel(LevelWarn)
	t.Cleanup(func() { SetLevel(LevelWarn) })

	Debug("debug message")
	Info("info message")
	assert.Empty(t, buf.String())

	Warn("warn message")
	assert.Contains(t, buf.String(), "WARN: warn message")

	buf.Reset()
	Component("dispatch").Error("error message")
	assert.True(t, strings.HasPrefix(buf.String(), "ERROR: error message"))
	assert.Contains(t, buf.String(), "component=dispatch")
	assert.Same(t, defaultLogger, Default())
}
