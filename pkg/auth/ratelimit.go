package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/plantwise/plantwise/pkg/identity"
)

// RateLimiter checks whether an authenticated request should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, p *identity.Principal) error
}

// InProcessLimiter is a token-bucket limiter keyed by tenant. Each tenant
// gets a bucket refilled at requestsPerMinute with a burst of the same size.
type InProcessLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewInProcessLimiter creates a per-tenant limiter. A non-positive
// requestsPerMinute disables limiting.
func NewInProcessLimiter(requestsPerMinute int) *InProcessLimiter {
	l := &InProcessLimiter{buckets: make(map[string]*rate.Limiter)}
	if requestsPerMinute > 0 {
		l.limit = rate.Limit(float64(requestsPerMinute) / 60)
		l.burst = requestsPerMinute
	}
	return l
}

// Allow consumes one token from the principal's tenant bucket.
func (l *InProcessLimiter) Allow(_ context.Context, p *identity.Principal) error {
	if l.burst == 0 || p == nil {
		return nil
	}
	if !l.bucket(p.TenantID).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *InProcessLimiter) bucket(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[tenantID]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[tenantID] = b
	}
	return b
}
