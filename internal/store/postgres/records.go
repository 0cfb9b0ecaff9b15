package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobplane/internal/store"

	"github.com/google/uuid"
)

func encodeLines(lines []store.LogLine) ([]byte, error) {
	if lines == nil {
		lines = []store.LogLine{}
	}
	return json.Marshal(lines)
}

func decodeLines(raw []byte) ([]store.LogLine, error) {
	var lines []store.LogLine
	if len(raw) == 0 {
		return lines, nil
	}
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func decodeOrderedMap(raw []byte) (*store.OrderedMap, error) {
	m := store.NewOrderedMap()
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateUnique inserts rec, relying on a partial unique index over
// (name) WHERE running_state = rec.RunningState to enforce I1/I2. Postgres
// requires the ON CONFLICT inference predicate to match an index exactly,
// so the target clause is chosen by rec.RunningState.
func (s *Store) CreateUnique(ctx context.Context, rec *store.JobRecord) (*store.JobRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var conflictClause string
	switch rec.RunningState {
	case store.RunningStateRunning:
		conflictClause = "ON CONFLICT (name) WHERE running_state = 'RUNNING' DO NOTHING"
	case store.RunningStateQueued:
		conflictClause = "ON CONFLICT (name) WHERE running_state = 'QUEUED' DO NOTHING"
	default:
		return nil, fmt.Errorf("createUnique: unsupported running state %q", rec.RunningState)
	}

	paramsJSON, err := json.Marshal(rec.Parameters)
	if err != nil {
		return nil, err
	}
	dataJSON, err := json.Marshal(rec.AdditionalData)
	if err != nil {
		return nil, err
	}
	logsJSON, err := encodeLines(rec.LogLines)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.LastModifiedAt.IsZero() {
		rec.LastModifiedAt = rec.CreatedAt
	}

	query := fmt.Sprintf(`
		INSERT INTO job_records (
			id, name, host, thread, running_state, result_code, execution_priority,
			parameters, result_message, status_message, created_at, started_at,
			finished_at, last_modified_at, max_execution_ms, max_idle_ms,
			log_lines, additional_data, abort_requested
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		%s
		RETURNING id`, conflictClause)

	var returnedID string
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.Name, rec.Host, rec.Thread, rec.RunningState, rec.ResultCode, rec.ExecutionPriority,
		paramsJSON, rec.ResultMessage, rec.StatusMessage, rec.CreatedAt, rec.StartedAt,
		rec.FinishedAt, rec.LastModifiedAt, rec.MaxExecutionMs, rec.MaxIdleMs,
		logsJSON, dataJSON, rec.AbortRequested,
	).Scan(&returnedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("createUnique: %w", err)
	}
	return rec, nil
}

const recordColumns = `
	id, name, host, thread, running_state, result_code, execution_priority,
	parameters, result_message, status_message, created_at, started_at,
	finished_at, last_modified_at, max_execution_ms, max_idle_ms,
	log_lines, additional_data, abort_requested
`

func scanRecord(row interface {
	Scan(dest ...interface{}) error
}) (*store.JobRecord, error) {
	var rec store.JobRecord
	var paramsRaw, dataRaw, logsRaw []byte
	var resultCode sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Host, &rec.Thread, &rec.RunningState, &resultCode, &rec.ExecutionPriority,
		&paramsRaw, &rec.ResultMessage, &rec.StatusMessage, &rec.CreatedAt, &rec.StartedAt,
		&rec.FinishedAt, &rec.LastModifiedAt, &rec.MaxExecutionMs, &rec.MaxIdleMs,
		&logsRaw, &dataRaw, &rec.AbortRequested,
	)
	if err != nil {
		return nil, err
	}
	if resultCode.Valid {
		rc := store.ResultCode(resultCode.String)
		rec.ResultCode = &rc
	}
	rec.Parameters, err = decodeOrderedMap(paramsRaw)
	if err != nil {
		return nil, err
	}
	rec.AdditionalData, err = decodeOrderedMap(dataRaw)
	if err != nil {
		return nil, err
	}
	rec.LogLines, err = decodeLines(logsRaw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByID returns the record with the given ID.
func (s *Store) FindByID(ctx context.Context, id string) (*store.JobRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM job_records WHERE id = $1", recordColumns)
	row := s.db.QueryRowContext(ctx, query, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// FindByName returns the most recent records for name, newest first.
func (s *Store) FindByName(ctx context.Context, name string, limit int) ([]*store.JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM job_records WHERE name = $1 ORDER BY created_at DESC LIMIT $2", recordColumns)
	rows, err := s.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindByNameAndState returns the non-finished records for name in state.
func (s *Store) FindByNameAndState(ctx context.Context, name string, state store.RunningState) ([]*store.JobRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM job_records WHERE name = $1 AND running_state = $2", recordColumns)
	rows, err := s.db.QueryContext(ctx, query, name, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindByNameAndTimeRange returns finished records within [from, to],
// optionally filtered by name and resultCode. An empty name or resultCode
// is treated as "no filter".
func (s *Store) FindByNameAndTimeRange(ctx context.Context, name string, resultCode store.ResultCode, from, to time.Time) ([]*store.JobRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_records
		WHERE running_state = 'FINISHED' AND finished_at >= $1 AND finished_at <= $2
		AND ($3 = '' OR name = $3)
		AND ($4 = '' OR result_code = $4)
		ORDER BY finished_at DESC`, recordColumns)
	rows, err := s.db.QueryContext(ctx, query, from, to, name, resultCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindQueuedSortedAscByCreation returns all QUEUED records for name, oldest
// first, matching the order the scheduler drains its queue in.
func (s *Store) FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*store.JobRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM job_records WHERE name = $1 AND running_state = 'QUEUED' ORDER BY created_at ASC", recordColumns)
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindRunning returns every currently RUNNING record, across all names.
func (s *Store) FindRunning(ctx context.Context) ([]*store.JobRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM job_records WHERE running_state = 'RUNNING'", recordColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]*store.JobRecord, error) {
	var records []*store.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HasJob reports whether name has any non-finished record.
func (s *Store) HasJob(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM job_records WHERE name = $1 AND running_state != 'FINISHED')",
		name,
	).Scan(&exists)
	return exists, err
}

// Remove deletes a QUEUED record.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM job_records WHERE id = $1 AND running_state = 'QUEUED'", id)
	return err
}

// ActivateQueuedJob transitions a QUEUED record to RUNNING. Relies on the
// running-state unique index to fail the update if the RUNNING slot for
// name is already occupied by a concurrent activation.
func (s *Store) ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*store.JobRecord, error) {
	query := fmt.Sprintf(`UPDATE job_records
		SET running_state = 'RUNNING', host = $2, thread = $3, started_at = $4, last_modified_at = $4
		WHERE id = $1 AND running_state = 'QUEUED'
		RETURNING %s`, recordColumns)
	row := s.db.QueryRowContext(ctx, query, id, host, thread, startedAt)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAlreadyExists
	}
	return rec, err
}

// MarkQueuedAsNotExecuted transitions a QUEUED record straight to
// FINISHED/NOT_EXECUTED.
func (s *Store) MarkQueuedAsNotExecuted(ctx context.Context, id string, message string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_records
		SET running_state = 'FINISHED', result_code = $2, result_message = $3, finished_at = $4, last_modified_at = $4
		WHERE id = $1 AND running_state = 'QUEUED'`,
		id, store.ResultNotExecuted, message, at)
	return err
}

// MarkRunningAsFinished transitions a RUNNING record to FINISHED.
func (s *Store) MarkRunningAsFinished(ctx context.Context, id string, result store.ResultCode, message string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_records
		SET running_state = 'FINISHED', result_code = $2, result_message = $3, finished_at = $4, last_modified_at = $4
		WHERE id = $1 AND running_state = 'RUNNING'`,
		id, result, message, at)
	return err
}

// UpdateHostThread updates Host/Thread in place.
func (s *Store) UpdateHostThread(ctx context.Context, id, host, thread string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE job_records SET host = $2, thread = $3, last_modified_at = now() WHERE id = $1",
		id, host, thread)
	return err
}

// AppendLogLine appends a line, trimming to store.MaxLogLines from the
// front. Read-modify-write under the row; callers append from a single
// worker goroutine per record so this isn't contended in practice.
func (s *Store) AppendLogLine(ctx context.Context, id string, line store.LogLine) error {
	var raw []byte
	if err := s.db.QueryRowContext(ctx, "SELECT log_lines FROM job_records WHERE id = $1", id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	lines, err := decodeLines(raw)
	if err != nil {
		return err
	}
	lines = append(lines, line)
	if len(lines) > store.MaxLogLines {
		lines = lines[len(lines)-store.MaxLogLines:]
	}
	return s.SetLogLines(ctx, id, lines)
}

// SetLogLines replaces the entire log for id.
func (s *Store) SetLogLines(ctx context.Context, id string, lines []store.LogLine) error {
	raw, err := encodeLines(lines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE job_records SET log_lines = $2, last_modified_at = now() WHERE id = $1",
		id, raw)
	return err
}

// SetStatusMessage overwrites the StatusMessage for id.
func (s *Store) SetStatusMessage(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE job_records SET status_message = $2, last_modified_at = now() WHERE id = $1",
		id, message)
	return err
}

// InsertAdditionalData sets key=value only if key is absent.
func (s *Store) InsertAdditionalData(ctx context.Context, id, key, value string) error {
	return s.mutateAdditionalData(ctx, id, key, value, false)
}

// AddAdditionalData sets key=value, overwriting any existing value.
func (s *Store) AddAdditionalData(ctx context.Context, id, key, value string) error {
	return s.mutateAdditionalData(ctx, id, key, value, true)
}

func (s *Store) mutateAdditionalData(ctx context.Context, id, key, value string, overwrite bool) error {
	var raw []byte
	if err := s.db.QueryRowContext(ctx, "SELECT additional_data FROM job_records WHERE id = $1", id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	data, err := decodeOrderedMap(raw)
	if err != nil {
		return err
	}
	if overwrite {
		data.Set(key, value)
	} else {
		data.SetIfAbsent(key, value)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE job_records SET additional_data = $2, last_modified_at = now() WHERE id = $1",
		id, encoded)
	return err
}

// SetAbortRequested flags id for abort.
func (s *Store) SetAbortRequested(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE job_records SET abort_requested = TRUE WHERE id = $1", id)
	return err
}
