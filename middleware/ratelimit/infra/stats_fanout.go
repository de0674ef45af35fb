package infra

import (
	"context"
	"errors"

	"admission-gateway/middleware/ratelimit/domain"
)

// StatsFanout repassa cada evento para todos os stores. Um store com erro
// não impede os outros; os erros voltam juntos.
type StatsFanout []domain.StatsStore

// NewStatsFanout ignora entradas nil.
func NewStatsFanout(stores ...domain.StatsStore) StatsFanout {
	out := make(StatsFanout, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f StatsFanout) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
