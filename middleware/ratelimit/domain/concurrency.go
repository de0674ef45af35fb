package domain

import "context"

// SlotPool limita quantas requisições podem estar em voo ao mesmo tempo
// contra o upstream.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. Com ok=true,
// release deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// InUse devolve quantas vagas estão ocupadas agora.
	InUse() int
}
