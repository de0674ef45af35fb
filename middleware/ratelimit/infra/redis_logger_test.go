package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisLogger_Throttles(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewRedisLogger(zap.New(core), time.Hour)

	for i := 0; i < 20; i++ {
		l.Printf(context.Background(), "redis: %s failed to dial after %d attempts", "127.0.0.1:6379", 1)
	}

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "redis: 127.0.0.1:6379 failed to dial after 1 attempts", entries[0].Message)
}

func TestRedisLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRedisLogger(nil, time.Minute).Printf(context.Background(), "x")
	})
}
