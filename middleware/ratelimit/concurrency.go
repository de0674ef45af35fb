package ratelimit

import (
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyLimiter limita requisições simultâneas contra o upstream.
type ConcurrencyLimiter struct {
	svc          application.ConcurrencyService
	rejectStatus int
}

// NewConcurrencyLimiter com Max <= 0 devolve um limiter que deixa tudo passar.
func NewConcurrencyLimiter(opts ConcurrencyOptions) *ConcurrencyLimiter {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	l := &ConcurrencyLimiter{rejectStatus: opts.RejectStatus}
	if opts.Max > 0 {
		l.svc = application.ConcurrencyService{
			Pool:           infra.NewChanPool(opts.Max),
			AcquireTimeout: opts.AcquireTimeout,
		}
	}
	return l
}

// InFlight devolve quantas requisições estão segurando vaga.
func (l *ConcurrencyLimiter) InFlight() int { return l.svc.InFlight() }

func (l *ConcurrencyLimiter) Middleware(next http.Handler) http.Handler {
	if l.svc.Pool == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, ok := l.svc.Acquire(r.Context())
		if !ok {
			writeJSONError(w, l.rejectStatus, http.StatusText(l.rejectStatus))
			return
		}
		defer release()

		next.ServeHTTP(w, r)
	})
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	return NewConcurrencyLimiter(opts).Middleware
}
