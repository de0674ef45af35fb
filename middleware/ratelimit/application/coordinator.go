package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout limita a chamada ao limiter distribuído. Passou disso, conta
// como falha e a decisão vem da memória.
const DefaultTimeout = time.Second

// Coordinator decide allow/deny para (identificador, tier).
//
// Tenta primeiro o limiter distribuído do tier; se não houver um configurado ou
// se ele não responder, usa o limiter em memória. Nunca devolve erro: uma
// falha de infraestrutura aparece apenas como Source=memory.
type Coordinator struct {
	distributed map[domain.Tier]domain.DistributedLimiter
	memory      domain.MemoryCounter
	timeout     time.Duration
	logger      *zap.Logger
	onFallback  func(domain.Tier, error)

	// um warn por intervalo, senão uma queda do Redis inunda o log
	warnEvery rate.Sometimes
}

type CoordinatorOption func(*Coordinator)

// WithDistributed registra os limiters distribuídos por tier. Tiers ausentes
// (ou um mapa vazio) usam só a memória.
func WithDistributed(limiters map[domain.Tier]domain.DistributedLimiter) CoordinatorOption {
	return func(c *Coordinator) { c.distributed = limiters }
}

func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFallbackHook é chamado a cada queda para a memória causada por falha
// do distribuído (ex: métrica).
func WithFallbackHook(fn func(domain.Tier, error)) CoordinatorOption {
	return func(c *Coordinator) { c.onFallback = fn }
}

// WithWarnInterval muda o intervalo mínimo entre warns de fallback.
func WithWarnInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.warnEvery = rate.Sometimes{Interval: d} }
}

// NewCoordinator exige o limiter em memória; ele é o caminho que sempre responde.
func NewCoordinator(memory domain.MemoryCounter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		memory:    memory,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
		warnEvery: rate.Sometimes{Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DistributedEnabled diz se algum tier tem limiter distribuído.
func (c *Coordinator) DistributedEnabled() bool {
	return len(c.distributed) > 0
}

func (c *Coordinator) CheckRateLimit(ctx context.Context, id domain.Key, tier domain.Tier) domain.Result {
	if lim, ok := c.distributed[tier]; ok && lim != nil {
		out := c.callDistributed(ctx, lim, id)
		if out.Available() {
			return domain.Result{
				Success:   out.Success,
				Remaining: max(out.Remaining, 0),
				Source:    domain.SourceDistributed,
			}
		}
		c.fallback(tier, out.Err)
	}

	p := domain.PolicyFor(tier)
	ok, remaining := c.memory.Check(string(tier)+":"+string(id), p.Limit, p.Window)
	if !ok {
		remaining = 0
	}
	return domain.Result{
		Success:   ok,
		Remaining: max(remaining, 0),
		Source:    domain.SourceMemory,
	}
}

func (c *Coordinator) callDistributed(ctx context.Context, lim domain.DistributedLimiter, id domain.Key) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := lim.Limit(ctx, id)
	// um adapter que ignora o ctx e responde tarde demais não vale
	if out.Available() && ctx.Err() != nil {
		return domain.Unavailable(ctx.Err())
	}
	return out
}

func (c *Coordinator) fallback(tier domain.Tier, err error) {
	if c.onFallback != nil {
		c.onFallback(tier, err)
	}
	c.warnEvery.Do(func() {
		c.logger.Warn("distributed rate limiter unavailable, using memory",
			zap.String("tier", string(tier)),
			zap.Error(err),
		)
	})
}
