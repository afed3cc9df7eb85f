package utils

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *Logger {
	return NewLogger(LoggerConfig{Level: FATAL, Output: &bytes.Buffer{}})
}

func TestGracefulShutdown_ReverseOrder(t *testing.T) {
	g := NewGracefulShutdown(time.Second, quiet())
	var order []string
	for _, name := range []string{"segment", "metrics", "loop"} {
		g.Register(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, g.Shutdown(context.Background()))
	assert.Equal(t, []string{"loop", "metrics", "segment"}, order)
}

func TestGracefulShutdown_JoinsErrors(t *testing.T) {
	g := NewGracefulShutdown(time.Second, quiet())
	boom := errors.New("boom")
	ran := false
	g.Register("first", func() error { ran = true; return nil })
	g.Register("second", func() error { return boom })

	err := g.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second")
	assert.True(t, ran, "a failing step must not stop earlier registrations")
}

func TestGracefulShutdown_Timeout(t *testing.T) {
	g := NewGracefulShutdown(20*time.Millisecond, quiet())
	release := make(chan struct{})
	defer close(release)
	skipped := true
	g.Register("never", func() error { skipped = false; return nil })
	g.Register("stuck", func() error { <-release; return nil })

	err := g.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, skipped)
}

func TestGracefulShutdown_Idempotent(t *testing.T) {
	g := NewGracefulShutdown(time.Second, quiet())
	calls := 0
	g.Register("once", func() error { calls++; return nil })

	require.NoError(t, g.Shutdown(context.Background()))
	require.NoError(t, g.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}
