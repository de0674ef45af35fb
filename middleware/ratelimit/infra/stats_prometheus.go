package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusStats exporta as decisões como counters. Os labels são de baixa
// cardinalidade (tier, source, result); Key e Path nunca viram label.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// NewPrometheusStats registra os counters em reg. Com reg nil usa o
// registry padrão.
func NewPrometheusStats(reg prometheus.Registerer) *PrometheusStats {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusStats{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_decisions_total",
				Help: "Rate limit decisions by tier, source and result",
			},
			[]string{"tier", "source", "result"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_fallbacks_total",
				Help: "Checks that fell back to the in-memory limiter",
			},
			[]string{"tier"},
		),
	}
}

func (p *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	result := "denied"
	if ev.Allowed {
		result = "allowed"
	}
	p.decisions.WithLabelValues(string(ev.Tier), string(ev.Source), result).Inc()
	return nil
}

// RecordFallback conta uma queda para a memória. Casa com o hook
// OnFallback do coordinator.
func (p *PrometheusStats) RecordFallback(tier domain.Tier, _ error) {
	p.fallbacks.WithLabelValues(string(tier)).Inc()
}
