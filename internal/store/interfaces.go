package store

import (
	"context"
	"database/sql"
	"time"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active transaction
// to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// RecordStore persists JobRecord rows: the per-attempt execution history
// consulted and mutated by the scheduler's admit decision, the remote
// supervisor and the housekeeper.
//
// CreateUnique backs invariants I1/I2: it must insert the record only if no
// other non-finished record with the same Name already occupies the target
// RunningState slot, returning (nil, ErrAlreadyExists) rather than an error
// on collision, so callers can treat the race as a normal "lost the slot"
// outcome instead of a failure.
type RecordStore interface {
	// CreateUnique inserts rec in RunningState rec.RunningState, enforcing a
	// per-Name uniqueness constraint over non-finished records in that
	// state. Returns ErrAlreadyExists if the slot is already taken.
	CreateUnique(ctx context.Context, rec *JobRecord) (*JobRecord, error)

	// FindByID returns the record with the given ID.
	FindByID(ctx context.Context, id string) (*JobRecord, error)

	// FindByName returns the most recent records for a job name, newest
	// first, bounded by limit.
	FindByName(ctx context.Context, name string, limit int) ([]*JobRecord, error)

	// FindByNameAndState returns the non-finished records for name that
	// are currently in state.
	FindByNameAndState(ctx context.Context, name string, state RunningState) ([]*JobRecord, error)

	// FindByNameAndTimeRange returns finished records for name (all names
	// if name is empty) whose FinishedAt falls within [from, to], optionally
	// filtered by resultCode.
	FindByNameAndTimeRange(ctx context.Context, name string, resultCode ResultCode, from, to time.Time) ([]*JobRecord, error)

	// FindQueuedSortedAscByCreation returns all QUEUED records for name,
	// oldest first, the order the scheduler drains the queue in.
	FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*JobRecord, error)

	// FindRunning returns every record currently in RunningStateRunning,
	// across all names; used by the scheduler's local-running check and by
	// the housekeeper.
	FindRunning(ctx context.Context) ([]*JobRecord, error)

	// HasJob reports whether name has any non-finished record at all.
	HasJob(ctx context.Context, name string) (bool, error)

	// Remove deletes a QUEUED record, used when a caller withdraws a
	// pending execution request.
	Remove(ctx context.Context, id string) error

	// ActivateQueuedJob transitions a QUEUED record to RUNNING, assigning
	// host/thread and StartedAt. Fails if the record is not QUEUED or the
	// RUNNING slot for name is already occupied.
	ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*JobRecord, error)

	// MarkQueuedAsNotExecuted transitions a QUEUED record straight to
	// FINISHED/NOT_EXECUTED without ever running, e.g. when the request is
	// withdrawn from the queue.
	MarkQueuedAsNotExecuted(ctx context.Context, id string, message string, at time.Time) error

	// MarkRunningAsFinished transitions a RUNNING record to
	// FINISHED with the given result.
	MarkRunningAsFinished(ctx context.Context, id string, result ResultCode, message string, at time.Time) error

	// UpdateHostThread updates the Host/Thread fields of a record in place.
	UpdateHostThread(ctx context.Context, id, host, thread string) error

	// AppendLogLine appends a single timestamped line to id's log,
	// trimming to MaxLogLines from the front when the cap is exceeded.
	AppendLogLine(ctx context.Context, id string, line LogLine) error

	// SetLogLines replaces id's entire log, used by the remote supervisor
	// when reconciling a remote job's accumulated output.
	SetLogLines(ctx context.Context, id string, lines []LogLine) error

	// SetStatusMessage overwrites id's StatusMessage, used by the remote
	// supervisor to surface a still-running job's latest status text.
	SetStatusMessage(ctx context.Context, id, message string) error

	// InsertAdditionalData sets key=value on id's AdditionalData only if
	// key is not already present (first-write-wins).
	InsertAdditionalData(ctx context.Context, id, key, value string) error

	// AddAdditionalData sets key=value on id's AdditionalData,
	// overwriting any existing value.
	AddAdditionalData(ctx context.Context, id, key, value string) error

	// SetAbortRequested flags id for abort; the running worker observes
	// the flag and stops the underlying execution on its next check.
	SetAbortRequested(ctx context.Context, id string) error
}

// DefinitionStore persists the per-name JobDefinition policy rows consulted
// by the scheduler (Disabled) and the remote supervisor (IsRemote,
// PollingIntervalMs).
type DefinitionStore interface {
	// Upsert inserts or updates the definition for def.Name.
	Upsert(ctx context.Context, def *JobDefinition) error

	// FindDefinitionByName returns the definition for name.
	FindDefinitionByName(ctx context.Context, name string) (*JobDefinition, error)

	// FindAllDefinitions returns every registered definition.
	FindAllDefinitions(ctx context.Context) ([]*JobDefinition, error)

	// SetDisabled flips the Disabled flag for name.
	SetDisabled(ctx context.Context, name string, disabled bool) error
}

// TenantStore handles retrieving tenant information for HTTP authentication
// and rate limiting. Tenancy has no bearing on scheduler correctness; it is
// consulted only by the controller's middleware.
type TenantStore interface {
	// CreateTenant inserts a new tenant to the database.
	CreateTenant(ctx context.Context, tenant *Tenant) error

	// GetTenantByID returns a tenant by its ID.
	GetTenantByID(ctx context.Context, id string) (*Tenant, error)

	// GetTenantByAPIKeyHash returns a tenant by its API key hash.
	GetTenantByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)
}
