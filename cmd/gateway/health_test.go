package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/internal/config"
	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

type fixedErr struct{ err error }

func (f fixedErr) LastError() error { return f.err }

func TestHealthHandler(t *testing.T) {
	memory := infra.NewMemoryLimiter()
	memory.Check("api:1.1.1.1", 10, time.Minute)

	stats := infra.NewMemoryStatsStore()
	_ = stats.Record(context.Background(), domain.StatsEvent{Allowed: true})
	_ = stats.Record(context.Background(), domain.StatsEvent{Allowed: false})

	h := healthHandler(health{
		env:         config.EnvProduction,
		coordinator: application.NewCoordinator(memory),
		memory:      memory,
		stats:       stats,
		concurrency: ratelimit.NewConcurrencyLimiter(ratelimit.ConcurrencyOptions{Max: 2}),
		settings:    fixedErr{errors.New("error parsing config file")},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"status": "ok",
		"env": "production",
		"rateLimit": "memory",
		"memoryKeys": 1,
		"allowed": 1,
		"denied": 1,
		"inFlight": 0,
		"configError": "error parsing config file"
	}`, w.Body.String())
}

func TestHealthHandler_OmitsEmptyConfigError(t *testing.T) {
	memory := infra.NewMemoryLimiter()
	h := healthHandler(health{
		env:         config.EnvDevelopment,
		coordinator: application.NewCoordinator(memory),
		memory:      memory,
		stats:       infra.NewMemoryStatsStore(),
		concurrency: ratelimit.NewConcurrencyLimiter(ratelimit.ConcurrencyOptions{}),
		settings:    fixedErr{},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotContains(t, w.Body.String(), "configError")
}
