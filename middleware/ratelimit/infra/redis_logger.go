package infra

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RedisLogger leva os logs internos do go-redis para o zap, no máximo uma
// linha por intervalo. Registrar com redis.SetLogger.
type RedisLogger struct {
	logger *zap.Logger
	every  *rate.Sometimes
}

func NewRedisLogger(logger *zap.Logger, every time.Duration) *RedisLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLogger{logger: logger, every: &rate.Sometimes{First: 1, Interval: every}}
}

func (l *RedisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	l.every.Do(func() {
		l.logger.Warn(fmt.Sprintf(format, v...))
	})
}
