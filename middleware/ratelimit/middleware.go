package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// DefaultPathPrefix restringe o rate limit às rotas de API.
const DefaultPathPrefix = "/api/"

// LoopbackIdentifier é usado quando nenhum header de proxy traz o IP do cliente.
const LoopbackIdentifier = "127.0.0.1"

type KeyFunc func(r *http.Request) string

type Options struct {
	Checker domain.RateLimitChecker
	Stats   domain.StatsStore
	KeyFn   KeyFunc
	// Só paths com este prefixo passam pelo limiter. Vazio = DefaultPathPrefix.
	PathPrefix string
	Logger     *zap.Logger
}

// ClientIdentifier extrai o identificador do cliente dos headers de proxy:
// primeiro IP do X-Forwarded-For, senão X-Real-IP, senão loopback.
//
// Não é autenticado; serve para separar buckets, não para segurança.
func ClientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return LoopbackIdentifier
}

type errorBody struct {
	Error string `json:"error"`
}

// Middleware aplica o rate limit por tier às rotas de API.
//
// Negado: 429 com corpo JSON, X-RateLimit-Remaining: 0 e Retry-After do tier.
// Permitido: X-RateLimit-Remaining com o saldo e segue para next.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIdentifier
	}
	if opts.PathPrefix == "" {
		opts.PathPrefix = DefaultPathPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if opts.Checker == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !strings.HasPrefix(path, opts.PathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			key := domain.Key(opts.KeyFn(r))
			tier := domain.TierForPath(path)
			res := opts.Checker.CheckRateLimit(r.Context(), key, tier)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Tier:    tier,
					Source:  res.Source,
					Allowed: res.Success,
					Method:  r.Method,
					Path:    path,
					At:      time.Now(),
				})
				if err != nil {
					opts.Logger.Debug("record rate limit stats", zap.Error(err))
				}
			}

			if !res.Success {
				opts.Logger.Info("rate limit exceeded",
					zap.String("key", string(key)),
					zap.String("tier", string(tier)),
					zap.String("source", string(res.Source)),
					zap.String("path", path),
				)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", formatSeconds(tier.RetryAfter()))
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", formatInt(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
