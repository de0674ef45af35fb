// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryLimiter: janela fixa por chave em memória (fallback local)
//   - RedisSlidingWindow: janela deslizante por log no Redis, um por tier
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: estatísticas de decisão
//   - ChanPool: semáforo simples para limite de concorrência
package infra
