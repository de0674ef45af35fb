// Package application contém os casos de uso do rate limit e do limite de
// concorrência.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: Coordinator.CheckRateLimit(ctx, key, tier) devolve um domain.Result
// (allow/deny + remaining + origem da decisão).
package application
