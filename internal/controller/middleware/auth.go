// Package middleware contains HTTP middleware for the controller API:
// tenant authentication and per-tenant rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"jobplane/internal/auth"
	"jobplane/internal/store"
)

type tenantKey struct{}

// AuthMiddleware validates the Authorization: Bearer <api-key> header
// against s, storing the resolved tenant in the request context. Tenancy
// has no bearing on scheduler correctness; it exists only to scope and
// rate-limit the HTTP surface.
func AuthMiddleware(s store.TenantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "missing or malformed authorization header", http.StatusUnauthorized)
				return
			}

			tenant, err := s.GetTenantByAPIKeyHash(r.Context(), auth.HashKey(key))
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if tenant == nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			ctx := NewContextWithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// NewContextWithTenant attaches tenant to ctx, as AuthMiddleware does for
// every authenticated request.
func NewContextWithTenant(ctx context.Context, tenant *store.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the tenant attached by AuthMiddleware, if any.
func TenantFromContext(ctx context.Context) (*store.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(*store.Tenant)
	return tenant, ok
}

// TenantIDFromContext is a convenience wrapper over TenantFromContext for
// handlers that only need the tenant's ID.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return "", false
	}
	return tenant.ID, true
}
