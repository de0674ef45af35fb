package infra

import (
	"context"
	"maps"
	"sync"

	"admission-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda contadores de decisões em memória.
// Útil para testes, desenvolvimento e para o /healthz.
//
// Não faz expiração: byKey só é preenchido com WithTrackKeys(true).
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byTier   map[domain.Tier]Counters
	bySource map[domain.Source]Counters
	byRoute  map[string]Counters
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byTier:   make(map[domain.Tier]Counters),
		bySource: make(map[domain.Source]Counters),
		byRoute:  make(map[string]Counters),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byTier, ev.Tier, ev.Allowed)
	bump(s.bySource, ev.Source, ev.Allowed)
	bump(s.byRoute, ev.Method+" "+ev.Path, ev.Allowed)
	if s.trackKeys {
		bump(s.byKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

func bump[K comparable](m map[K]Counters, k K, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByTier() map[domain.Tier]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byTier)
}

func (s *MemoryStatsStore) BySource() map[domain.Source]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.bySource)
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
