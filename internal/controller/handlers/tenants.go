package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"jobplane/internal/auth"
	"jobplane/internal/store"
	"jobplane/pkg/api"
)

// CreateTenant handles POST /tenants (admin only, protected by
// RequireInternalAuth rather than the per-tenant auth middleware). It
// generates a new API key, hashes it for storage, and returns the raw key
// once.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, r, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.httpError(w, r, "name is required", http.StatusBadRequest)
		return
	}

	rawKeyBytes := make([]byte, 32)
	if _, err := rand.Read(rawKeyBytes); err != nil {
		h.httpError(w, r, "entropy failure", http.StatusInternalServerError)
		return
	}
	apiKey := "jp_" + hex.EncodeToString(rawKeyBytes)

	tenant := &store.Tenant{
		Name:           req.Name,
		APIKeyHash:     auth.HashKey(apiKey),
		RateLimit:      req.RateLimit,
		RateLimitBurst: req.RateLimitBurst,
	}

	if err := h.deps.CreateTenant(ctx, tenant); err != nil {
		h.httpError(w, r, "failed to create tenant", http.StatusInternalServerError)
		return
	}

	resp := api.CreateTenantResponse{
		ID:     tenant.ID,
		Name:   tenant.Name,
		APIKey: apiKey,
	}
	h.respondJson(w, http.StatusCreated, resp)
}
