package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// DefaultMemoryCapacity é o número de chaves a partir do qual a limpeza
// oportunista passa a rodar.
const DefaultMemoryCapacity = 10_000

// MemoryLimiter é o fallback local: janela fixa por chave, em memória do processo.
//
// Não coordena entre instâncias; cada processo tem a sua tabela. É uma
// limitação conhecida, o caminho distribuído é o preciso.
type MemoryLimiter struct {
	mu       sync.Mutex
	records  map[string]*memoryRecord
	capacity int
	maxAge   time.Duration
	now      func() time.Time
}

type memoryRecord struct {
	count     int
	lastReset time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithCapacity muda o limiar de chaves que dispara a limpeza.
func WithCapacity(n int) MemoryOption {
	return func(m *MemoryLimiter) { m.capacity = n }
}

// WithMaxAge muda a idade a partir da qual um registro pode ser removido.
// Deve ser >= maior janela usada nos Checks.
func WithMaxAge(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) { m.maxAge = d }
}

// WithClock injeta o relógio (testes).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		records:  make(map[string]*memoryRecord),
		capacity: DefaultMemoryCapacity,
		maxAge:   domain.MaxWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check implementa domain.MemoryCounter.
//
// O read-modify-write inteiro acontece sob o mesmo lock, então dois checks
// concorrentes para a mesma chave nunca intercalam.
func (m *MemoryLimiter) Check(key string, limit int, window time.Duration) (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.records) > m.capacity {
		m.sweepLocked(now)
	}

	rec, ok := m.records[key]
	if !ok || rec.lastReset.Before(now.Add(-window)) {
		m.records[key] = &memoryRecord{count: 1, lastReset: now}
		return true, clampRemaining(limit - 1)
	}

	if rec.count >= limit {
		return false, 0
	}

	rec.count++
	return true, clampRemaining(limit - rec.count)
}

// Len devolve quantas chaves estão na tabela.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Sweep remove os registros cuja janela expirou há mais de maxAge.
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryLimiter) sweepLocked(now time.Time) int {
	cutoff := now.Add(-m.maxAge)
	removed := 0
	for k, rec := range m.records {
		if rec.lastReset.Before(cutoff) {
			delete(m.records, k)
			removed++
		}
	}
	return removed
}

// StartJanitor roda Sweep periodicamente até o ctx encerrar, independente do
// tamanho da tabela. Com every <= 0 não faz nada (só a limpeza oportunista).
func (m *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

func clampRemaining(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
