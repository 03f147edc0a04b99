package llm

import (
	"context"
	"time"

	"github.com/xhad/hybridrag/internal/types"
	"golang.org/x/time/rate"
)

// gate bounds every collaborator call: it waits for a rate-limit token and
// runs the call under a deadline. Failures come back tagged as
// ErrExternalService. Retries are left to the caller.
type gate struct {
	service string
	limiter *rate.Limiter
	timeout time.Duration
}

func newGate(service string, requestsPerSecond float64, timeout time.Duration) *gate {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &gate{
		service: service,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
	}
}

func (g *gate) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return types.ExternalError(g.service, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return types.ExternalError(g.service, err)
	}
	return nil
}
