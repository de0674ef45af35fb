// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (coordinator distribuído → memória, acquire/timeout) sem net/http
//   - infra: implementações concretas (Redis, memória, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração do identificador + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai o identificador do cliente (X-Forwarded-For / X-Real-IP)
//  2. Classifica o path em um tier (api, auth, payment)
//  3. Chama o Coordinator para obter a decisão
//  4. Se bloqueado, responde 429 (rate limit) ou 503 (concorrência)
//  5. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_LIMIT_REDIS_URL, RATE_LIMIT_TIMEOUT, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
