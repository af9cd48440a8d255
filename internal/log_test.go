package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" DEBUG "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogLevelWarn)

	l.Info("fitted %d units", 3)
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Warn("unit %s skipped", "C1/MO24")
	assert.Contains(t, buf.String(), "unit C1/MO24 skipped")

	buf.Reset()
	l.With("unit", "C2/YSE").Error("boom")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "C2/YSE")
}

func TestLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogLevelTrace)
	l.Trace("bisection step %d", 7)
	assert.Contains(t, buf.String(), "bisection step 7")
}
