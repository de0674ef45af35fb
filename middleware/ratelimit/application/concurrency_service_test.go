package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct {
}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

func (p *blockingPool) InUse() int { return 1 }

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() { p.acquired-- }, true
}

func (p *immediatePool) InUse() int { return p.acquired }

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
	if svc.InFlight() != 0 {
		t.Fatalf("expected InFlight=0 without pool, got %d", svc.InFlight())
	}
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	pool := &blockingPool{}
	svc := ConcurrencyService{Pool: pool, AcquireTimeout: 10 * time.Millisecond}

	_, ok := svc.Acquire(context.Background())
	if ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool, AcquireTimeout: 0}

	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	if svc.InFlight() != 1 {
		t.Fatalf("expected InFlight=1, got %d", svc.InFlight())
	}
	release()
	if svc.InFlight() != 0 {
		t.Fatalf("expected InFlight=0 after release, got %d", svc.InFlight())
	}
}
