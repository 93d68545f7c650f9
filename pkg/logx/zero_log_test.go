package logx_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
)

type logConfig struct {
	level string
	env   string
}

func (c logConfig) GetServiceName() string { return "odm-test" }
func (c logConfig) GetVersion() string     { return "1.0.0" }
func (c logConfig) GetEnvironment() string { return c.env }
func (c logConfig) GetLogLevel() string    { return c.level }

// TestFatalDoesNotExit verifies fatal severity is logged as CRITICAL and returns control to the caller.
func TestFatalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	l := logx.NewZeroLogger(&buf, logConfig{level: "info", env: "PROD"})

	l.LogFatal(context.Background(), "connection failed", errors.New("dial tcp: refused"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "CRITICAL", line["severity"])
	assert.Equal(t, "connection failed", line["message"])
	assert.Equal(t, "dial tcp: refused", line["error"])
	assert.Equal(t, "odm-test", line["service"])
}

// TestLevelFiltering verifies messages below the configured level are dropped.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := logx.NewZeroLogger(&buf, logConfig{level: "warn", env: "DEV"})

	l.LogDebug(context.Background(), "hidden")
	l.LogInfo(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	l.LogWarning(context.Background(), "shown")
	assert.Contains(t, buf.String(), `"severity":"WARNING"`)
}

// TestPanicLogs verifies LogPanic writes the entry before panicking.
func TestPanicLogs(t *testing.T) {
	var buf bytes.Buffer
	l := logx.NewZeroLogger(&buf, logConfig{level: "debug", env: "STAGE"})

	assert.PanicsWithValue(t, "boom", func() {
		l.LogPanic(context.Background(), "boom")
	})
	assert.Contains(t, buf.String(), "boom")
}

// TestGetLoggerDefault verifies a usable logger is returned before SetupLogger.
func TestGetLoggerDefault(t *testing.T) {
	require.NotNil(t, logx.GetLogger())
	assert.NotNil(t, logx.GetLogger().GetLogger())
}
