package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Janela deslizante por log: um sorted set por chave, score = instante em ms.
// Roda atômico no Redis, então várias instâncias do gateway enxergam o mesmo estado.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local allowed = 0
if count < limit then
    redis.call('ZADD', key, now, member)
    count = count + 1
    allowed = 1
end
redis.call('PEXPIRE', key, window)

return {allowed, limit - count}
`)

var errMalformedReply = errors.New("malformed sliding window reply")

// RedisSlidingWindow implementa domain.DistributedLimiter para um tier.
type RedisSlidingWindow struct {
	client redis.Scripter
	prefix string
	policy domain.Policy
	now    func() time.Time
	newID  func() string
}

type SlidingOption func(*RedisSlidingWindow)

// WithKeyPrefix muda o prefixo das chaves (padrão "rl"). O tier é sempre
// acrescentado, ex: "rl:auth:1.2.3.4".
func WithKeyPrefix(prefix string) SlidingOption {
	return func(w *RedisSlidingWindow) {
		if p := strings.Trim(prefix, ":"); p != "" {
			w.prefix = p
		}
	}
}

// WithSlidingClock injeta o relógio (testes).
func WithSlidingClock(now func() time.Time) SlidingOption {
	return func(w *RedisSlidingWindow) { w.now = now }
}

func NewRedisSlidingWindow(client redis.Scripter, tier domain.Tier, opts ...SlidingOption) *RedisSlidingWindow {
	w := &RedisSlidingWindow{
		client: client,
		prefix: "rl",
		policy: domain.PolicyFor(tier),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.prefix = w.prefix + ":" + string(tier)
	return w
}

func (w *RedisSlidingWindow) key(id domain.Key) string {
	return w.prefix + ":" + string(id)
}

// Limit implementa domain.DistributedLimiter. Qualquer falha vira Outcome
// indisponível; nunca decide allow/deny sem resposta válida do Redis.
func (w *RedisSlidingWindow) Limit(ctx context.Context, id domain.Key) domain.Outcome {
	if w == nil || w.client == nil {
		return domain.Unavailable(nil)
	}

	vals, err := slidingWindowScript.Run(ctx, w.client, []string{w.key(id)},
		w.policy.Limit,
		w.policy.Window.Milliseconds(),
		w.now().UnixMilli(),
		w.newID(),
	).Int64Slice()
	if err != nil {
		return domain.Unavailable(fmt.Errorf("eval sliding window: %w", err))
	}
	if len(vals) != 2 {
		return domain.Unavailable(errMalformedReply)
	}

	return domain.Outcome{
		Success:   vals[0] == 1,
		Remaining: clampRemaining(int(vals[1])),
	}
}

// DistributedConfig descreve a conexão com o serviço de rate limit distribuído.
type DistributedConfig struct {
	// URL no formato redis:// ou rediss://
	URL string
	// Token de acesso, usado como senha do Redis.
	Token   string
	Timeout time.Duration
}

// Enabled exige os dois parâmetros; faltando qualquer um o caminho distribuído
// fica desligado e tudo cai na memória.
func (c DistributedConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Token) != ""
}

// NewDistributedClient cria o client Redis. Sem retries: uma tentativa e, se
// falhar, o coordinator cai para a memória.
func NewDistributedClient(cfg DistributedConfig) (*redis.Client, error) {
	opts, err := distributedOptions(cfg)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// distributedOptions desliga os retries de comando e de dial (o go-redis
// tenta discar 5 vezes por padrão).
func distributedOptions(cfg DistributedConfig) (*redis.Options, error) {
	if !cfg.Enabled() {
		return nil, errors.New("distributed limiter is not configured")
	}

	opts, err := redis.ParseURL(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parse rate limit redis url: %w", err)
	}
	opts.Password = strings.TrimSpace(cfg.Token)
	opts.MaxRetries = -1
	opts.DialerRetries = 1
	opts.DialerRetryTimeout = time.Millisecond
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return opts, nil
}

// NewDistributedLimiters monta um limiter por tier, cada um com seu namespace.
func NewDistributedLimiters(client redis.Scripter, opts ...SlidingOption) map[domain.Tier]domain.DistributedLimiter {
	out := make(map[domain.Tier]domain.DistributedLimiter, len(domain.Tiers))
	for _, tier := range domain.Tiers {
		out[tier] = NewRedisSlidingWindow(client, tier, opts...)
	}
	return out
}
