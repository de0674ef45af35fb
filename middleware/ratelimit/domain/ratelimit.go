package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Key identifica o cliente (normalmente o IP). Não é autenticado: serve apenas
// para separar buckets.
type Key string

// Tier é a classe de rota que define qual política se aplica.
type Tier string

const (
	TierAPI     Tier = "api"
	TierAuth    Tier = "auth"
	TierPayment Tier = "payment"
)

// Tiers lista todos os tiers conhecidos, em ordem estável.
var Tiers = []Tier{TierAPI, TierAuth, TierPayment}

// TierForPath classifica o path por substring.
//
// A ordem é fixa: /auth/ é testado antes de /payment/, então um path que
// contenha os dois cai em auth.
func TierForPath(path string) Tier {
	if strings.Contains(path, "/auth/") {
		return TierAuth
	}
	if strings.Contains(path, "/payment/") {
		return TierPayment
	}
	return TierAPI
}

// Policy é o par (limite, janela) de um tier.
type Policy struct {
	Limit  int
	Window time.Duration
}

// MaxWindow é a maior janela entre as políticas; usada pela limpeza da memória.
const MaxWindow = 600 * time.Second

// PolicyFor devolve a política do tier. Tiers desconhecidos usam a de api.
func PolicyFor(t Tier) Policy {
	switch t {
	case TierAuth:
		return Policy{Limit: 5, Window: 300 * time.Second}
	case TierPayment:
		return Policy{Limit: 3, Window: 600 * time.Second}
	default:
		return Policy{Limit: 10, Window: 60 * time.Second}
	}
}

// RetryAfter é o valor recomendado em Retry-After quando o tier bloqueia.
func (t Tier) RetryAfter() time.Duration {
	return PolicyFor(t).Window
}

// Source indica qual caminho produziu a decisão.
type Source string

const (
	SourceDistributed Source = "distributed"
	SourceMemory      Source = "memory"
)

// Result é a decisão final entregue ao middleware.
type Result struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining"`
	Source    Source `json:"source"`
}

// ErrDistributedUnavailable indica que o limiter distribuído não conseguiu
// decidir (rede, timeout, resposta inválida). Não significa allow nem deny.
var ErrDistributedUnavailable = errors.New("distributed limiter unavailable")

// Outcome é o retorno do limiter distribuído.
//
// Se Err != nil, Success/Remaining não têm significado e quem chamou deve
// cair para o limiter em memória.
type Outcome struct {
	Success   bool
	Remaining int
	Err       error
}

// Unavailable monta um Outcome de falha embrulhando ErrDistributedUnavailable.
func Unavailable(cause error) Outcome {
	if cause == nil {
		return Outcome{Err: ErrDistributedUnavailable}
	}
	return Outcome{Err: errors.Join(ErrDistributedUnavailable, cause)}
}

// Available diz se o Outcome carrega uma decisão.
func (o Outcome) Available() bool { return o.Err == nil }

// DistributedLimiter delega a decisão para um serviço externo compartilhado
// entre instâncias (ex: Redis). Um por tier.
type DistributedLimiter interface {
	Limit(ctx context.Context, id Key) Outcome
}

// MemoryCounter é o limiter local de janela fixa.
type MemoryCounter interface {
	Check(key string, limit int, window time.Duration) (success bool, remaining int)
}

// RateLimitChecker é o único contrato que o gate precisa do subsistema de rate limit.
type RateLimitChecker interface {
	CheckRateLimit(ctx context.Context, id Key, tier Tier) Result
}
