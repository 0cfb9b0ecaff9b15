package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"jobplane/internal/store"
	"jobplane/pkg/api"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-tenant token-bucket limit, read from the
// authenticated tenant's RateLimit/RateLimitBurst fields. RateLimit=0
// means unlimited.
type RateLimiter struct {
	ttl      time.Duration
	limiters sync.Map // tenant ID -> *cachedLimiter
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithTTL sets how long a tenant's limiter is cached, counted from when it
// was created, before it is recreated. Defaults to 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(rl *RateLimiter) { rl.ttl = ttl }
}

// NewRateLimiter builds a RateLimiter with the given options applied.
func NewRateLimiter(opts ...Option) *RateLimiter {
	rl := &RateLimiter{ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Middleware returns the http.Handler wrapper enforcing the limit. It
// requires AuthMiddleware to have already attached a tenant to the
// request context.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := TenantFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized", Code: "401"})
				return
			}

			if tenant.RateLimit > 0 {
				limiter := rl.limiterFor(tenant)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func (rl *RateLimiter) limiterFor(tenant *store.Tenant) *rate.Limiter {
	if v, ok := rl.limiters.Load(tenant.ID); ok {
		cached := v.(*cachedLimiter)
		if time.Now().Before(cached.expiresAt) {
			return cached.limiter
		}
	}

	limiter := rate.NewLimiter(rate.Limit(tenant.RateLimit), tenant.RateLimitBurst)
	rl.limiters.Store(tenant.ID, &cachedLimiter{limiter: limiter, expiresAt: time.Now().Add(rl.ttl)})
	return limiter
}
