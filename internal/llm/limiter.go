package llm

import (
	"context"

	"golang.org/x/time/rate"

	"dev.helix.brainbox/internal/apperrors"
)

// RateLimited wraps a Provider with a shared token bucket. It replaces the
// fixed cool-down sleep the service used to carry between retrieval and
// generation: callers block until a token is available or their deadline
// expires.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited builds a rate-limited provider allowing perSecond requests
// with the given burst.
func NewRateLimited(inner Provider, perSecond float64, burst int) *RateLimited {
	if perSecond <= 0 {
		perSecond = 0.25
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", apperrors.Wrap(apperrors.KindTransient, "llm rate limiter wait cancelled", err)
	}
	return r.inner.Complete(ctx, req)
}
