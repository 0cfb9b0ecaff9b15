package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jobplane/internal/store"
)

// Upsert inserts or updates the definition for def.Name.
func (s *Store) Upsert(ctx context.Context, def *store.JobDefinition) error {
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_definitions (
			name, disabled, is_remote, is_abortable, max_execution_ms, max_idle_ms,
			polling_interval_ms, last_not_executed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			disabled = EXCLUDED.disabled,
			is_remote = EXCLUDED.is_remote,
			is_abortable = EXCLUDED.is_abortable,
			max_execution_ms = EXCLUDED.max_execution_ms,
			max_idle_ms = EXCLUDED.max_idle_ms,
			polling_interval_ms = EXCLUDED.polling_interval_ms,
			updated_at = EXCLUDED.updated_at
	`,
		def.Name, def.Disabled, def.IsRemote, def.IsAbortable, def.MaxExecutionMs, def.MaxIdleMs,
		def.PollingIntervalMs, def.LastNotExecutedAt, def.CreatedAt, def.UpdatedAt,
	)
	return err
}

const definitionColumns = `
	name, disabled, is_remote, is_abortable, max_execution_ms, max_idle_ms,
	polling_interval_ms, last_not_executed_at, created_at, updated_at
`

func scanDefinition(row interface {
	Scan(dest ...interface{}) error
}) (*store.JobDefinition, error) {
	var def store.JobDefinition
	err := row.Scan(
		&def.Name, &def.Disabled, &def.IsRemote, &def.IsAbortable, &def.MaxExecutionMs, &def.MaxIdleMs,
		&def.PollingIntervalMs, &def.LastNotExecutedAt, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindDefinitionByName returns the definition for name.
func (s *Store) FindDefinitionByName(ctx context.Context, name string) (*store.JobDefinition, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+definitionColumns+" FROM job_definitions WHERE name = $1", name)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return def, err
}

// FindAllDefinitions returns every registered definition.
func (s *Store) FindAllDefinitions(ctx context.Context) ([]*store.JobDefinition, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+definitionColumns+" FROM job_definitions ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*store.JobDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// SetDisabled flips the Disabled flag for name.
func (s *Store) SetDisabled(ctx context.Context, name string, disabled bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE job_definitions SET disabled = $2, updated_at = now() WHERE name = $1",
		name, disabled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
