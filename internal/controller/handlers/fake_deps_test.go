package handlers

import (
	"context"
	"sort"
	"strconv"
	"time"

	"jobplane/internal/store"
)

// fakeDeps is an in-memory Dependencies implementation for handler tests:
// enough of RecordStore/DefinitionStore/TenantStore to exercise the HTTP
// surface without a database.
type fakeDeps struct {
	records      map[string]*store.JobRecord
	definitions  map[string]*store.JobDefinition
	tenants      map[string]*store.Tenant
	pingErr      error
	nextTenantID int
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		records:     make(map[string]*store.JobRecord),
		definitions: make(map[string]*store.JobDefinition),
		tenants:     make(map[string]*store.Tenant),
	}
}

func (f *fakeDeps) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeDeps) CreateUnique(ctx context.Context, rec *store.JobRecord) (*store.JobRecord, error) {
	for _, existing := range f.records {
		if existing.Name == rec.Name && existing.RunningState == rec.RunningState && existing.RunningState != store.RunningStateFinished {
			return nil, store.ErrAlreadyExists
		}
	}
	rec.ID = "rec-" + rec.Name + "-" + time.Now().UTC().Format("150405.000000000")
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeDeps) FindByID(ctx context.Context, id string) (*store.JobRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDeps) FindByName(ctx context.Context, name string, limit int) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, rec := range f.records {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDeps) FindByNameAndState(ctx context.Context, name string, state store.RunningState) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, rec := range f.records {
		if rec.Name == name && rec.RunningState == state {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDeps) FindByNameAndTimeRange(ctx context.Context, name string, resultCode store.ResultCode, from, to time.Time) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, rec := range f.records {
		if name != "" && rec.Name != name {
			continue
		}
		if rec.FinishedAt == nil || rec.FinishedAt.Before(from) || rec.FinishedAt.After(to) {
			continue
		}
		if resultCode != "" && (rec.ResultCode == nil || *rec.ResultCode != resultCode) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeDeps) FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*store.JobRecord, error) {
	return nil, nil
}

func (f *fakeDeps) FindRunning(ctx context.Context) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, rec := range f.records {
		if rec.RunningState == store.RunningStateRunning {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDeps) HasJob(ctx context.Context, name string) (bool, error) { return false, nil }

func (f *fakeDeps) Remove(ctx context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeDeps) ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*store.JobRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec.RunningState = store.RunningStateRunning
	rec.Host, rec.Thread, rec.StartedAt = host, thread, &startedAt
	return rec, nil
}

func (f *fakeDeps) MarkQueuedAsNotExecuted(ctx context.Context, id, message string, at time.Time) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	result := store.ResultNotExecuted
	rec.RunningState = store.RunningStateFinished
	rec.ResultCode = &result
	rec.ResultMessage = message
	rec.FinishedAt = &at
	return nil
}

func (f *fakeDeps) MarkRunningAsFinished(ctx context.Context, id string, result store.ResultCode, message string, at time.Time) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.RunningState = store.RunningStateFinished
	rec.ResultCode = &result
	rec.ResultMessage = message
	rec.FinishedAt = &at
	return nil
}

func (f *fakeDeps) UpdateHostThread(ctx context.Context, id, host, thread string) error { return nil }

func (f *fakeDeps) AppendLogLine(ctx context.Context, id string, line store.LogLine) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = append(rec.LogLines, line)
	return nil
}

func (f *fakeDeps) SetLogLines(ctx context.Context, id string, lines []store.LogLine) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = lines
	return nil
}

func (f *fakeDeps) SetStatusMessage(ctx context.Context, id, message string) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.StatusMessage = message
	return nil
}

func (f *fakeDeps) InsertAdditionalData(ctx context.Context, id, key, value string) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.AdditionalData == nil {
		rec.AdditionalData = store.NewOrderedMap()
	}
	rec.AdditionalData.SetIfAbsent(key, value)
	return nil
}

func (f *fakeDeps) AddAdditionalData(ctx context.Context, id, key, value string) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.AdditionalData == nil {
		rec.AdditionalData = store.NewOrderedMap()
	}
	rec.AdditionalData.Set(key, value)
	return nil
}

func (f *fakeDeps) SetAbortRequested(ctx context.Context, id string) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.AbortRequested = true
	return nil
}

func (f *fakeDeps) Upsert(ctx context.Context, def *store.JobDefinition) error {
	f.definitions[def.Name] = def
	return nil
}

func (f *fakeDeps) FindDefinitionByName(ctx context.Context, name string) (*store.JobDefinition, error) {
	def, ok := f.definitions[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return def, nil
}

func (f *fakeDeps) FindAllDefinitions(ctx context.Context) ([]*store.JobDefinition, error) {
	var out []*store.JobDefinition
	for _, def := range f.definitions {
		out = append(out, def)
	}
	return out, nil
}

func (f *fakeDeps) SetDisabled(ctx context.Context, name string, disabled bool) error {
	def, ok := f.definitions[name]
	if !ok {
		return store.ErrNotFound
	}
	def.Disabled = disabled
	return nil
}

func (f *fakeDeps) CreateTenant(ctx context.Context, tenant *store.Tenant) error {
	if tenant.ID == "" {
		f.nextTenantID++
		tenant.ID = "tenant-" + strconv.Itoa(f.nextTenantID)
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeDeps) GetTenantByID(ctx context.Context, id string) (*store.Tenant, error) {
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, nil
	}
	return tenant, nil
}

func (f *fakeDeps) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*store.Tenant, error) {
	for _, tenant := range f.tenants {
		if tenant.APIKeyHash == hash {
			return tenant, nil
		}
	}
	return nil, nil
}
