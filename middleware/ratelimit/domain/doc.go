// Package domain define contratos e tipos de domínio para rate limit e concorrência:
// tiers, políticas, resultados e as portas (limiter distribuído, contador em memória,
// estatísticas).
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
