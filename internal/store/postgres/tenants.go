package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jobplane/internal/store"

	"github.com/google/uuid"
)

// CreateTenant inserts a new tenant row.
func (s *Store) CreateTenant(ctx context.Context, tenant *store.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, api_key_hash, rate_limit, rate_limit_burst, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		tenant.ID, tenant.Name, tenant.APIKeyHash, tenant.RateLimit, tenant.RateLimitBurst, tenant.CreatedAt,
	)
	return err
}

const tenantColumns = "id, name, api_key_hash, rate_limit, rate_limit_burst, created_at"

func scanTenant(row interface {
	Scan(dest ...interface{}) error
}) (*store.Tenant, error) {
	var t store.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.APIKeyHash, &t.RateLimit, &t.RateLimitBurst, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTenantByID returns a tenant by its ID.
func (s *Store) GetTenantByID(ctx context.Context, id string) (*store.Tenant, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

// GetTenantByAPIKeyHash returns a tenant by its API key hash.
func (s *Store) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*store.Tenant, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE api_key_hash = $1", hash)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}
