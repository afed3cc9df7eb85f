package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LoggerConfig{Level: DEBUG, Component: "shm", Output: &buf})

	l.Info("Segment opened",
		Uint64("key", 8888),
		String("backend", "sysv"),
		Floats("positions", []float64{0.1, -0.2}),
		Duration("max", 1500*time.Microsecond),
		Err(errors.New("nope")),
	)

	line := buf.String()
	assert.Contains(t, line, "[INFO ] [shm] Segment opened")
	assert.Contains(t, line, `key=8888`)
	assert.Contains(t, line, `backend="sysv"`)
	assert.Contains(t, line, "positions=[0.1000,-0.2000]")
	assert.Contains(t, line, "max=1.5ms")
	assert.Contains(t, line, `error="nope"`)
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LoggerConfig{Level: WARN, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(INFO))

	l.SetLevel(DEBUG)
	l.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_WithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(LoggerConfig{Level: INFO, Component: "base", Output: &buf})
	child := base.With(Int("joint", 3)).Named("hardware")

	child.Info("cycle", Bool("ok", true))
	base.Info("plain")

	out := buf.String()
	assert.Contains(t, out, "[hardware] cycle joint=3 ok=true")
	assert.Contains(t, out, "[base] plain\n")
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]LogLevel{
		"debug": DEBUG, "INFO": INFO, "warning": WARN, "Error": ERROR, "fatal": FATAL,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", WARN.String())
}
