package scheduler

import (
	"context"
	"sync"
	"time"

	"jobplane/internal/store"

	"github.com/google/uuid"
)

// fakeRecordStore is an in-memory stand-in for store.RecordStore, good
// enough to exercise the admit decision and queue-drain logic without a
// database.
type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*store.JobRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[string]*store.JobRecord)}
}

func (f *fakeRecordStore) CreateUnique(ctx context.Context, rec *store.JobRecord) (*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Name == rec.Name && r.RunningState == rec.RunningState {
			return nil, store.ErrAlreadyExists
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	clone := *rec
	f.records[clone.ID] = &clone
	return &clone, nil
}

func (f *fakeRecordStore) FindByID(ctx context.Context, id string) (*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRecordStore) FindByName(ctx context.Context, name string, limit int) ([]*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.JobRecord
	for _, r := range f.records {
		if r.Name == name {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) FindByNameAndState(ctx context.Context, name string, state store.RunningState) ([]*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.JobRecord
	for _, r := range f.records {
		if r.Name == name && r.RunningState == state {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) FindByNameAndTimeRange(ctx context.Context, name string, resultCode store.ResultCode, from, to time.Time) ([]*store.JobRecord, error) {
	return nil, nil
}

func (f *fakeRecordStore) FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*store.JobRecord, error) {
	recs, err := f.FindByNameAndState(ctx, name, store.RunningStateQueued)
	if err != nil {
		return nil, err
	}
	sortByCreatedAtAsc(recs)
	return recs, nil
}

func sortByCreatedAtAsc(recs []*store.JobRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].CreatedAt.Before(recs[j-1].CreatedAt); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}

func (f *fakeRecordStore) FindRunning(ctx context.Context) ([]*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.JobRecord
	for _, r := range f.records {
		if r.RunningState == store.RunningStateRunning {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) HasJob(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Name == name && r.RunningState != store.RunningStateFinished {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRecordStore) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeRecordStore) ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.RunningState != store.RunningStateQueued {
		return nil, store.ErrAlreadyExists
	}
	for _, r := range f.records {
		if r.Name == rec.Name && r.RunningState == store.RunningStateRunning {
			return nil, store.ErrAlreadyExists
		}
	}
	rec.RunningState = store.RunningStateRunning
	rec.Host = host
	rec.Thread = thread
	rec.StartedAt = &startedAt
	clone := *rec
	return &clone, nil
}

func (f *fakeRecordStore) MarkQueuedAsNotExecuted(ctx context.Context, id string, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.RunningState != store.RunningStateQueued {
		return nil
	}
	rc := store.ResultNotExecuted
	rec.RunningState = store.RunningStateFinished
	rec.ResultCode = &rc
	rec.ResultMessage = message
	rec.FinishedAt = &at
	return nil
}

func (f *fakeRecordStore) MarkRunningAsFinished(ctx context.Context, id string, result store.ResultCode, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.RunningState != store.RunningStateRunning {
		return nil
	}
	rec.RunningState = store.RunningStateFinished
	rec.ResultCode = &result
	rec.ResultMessage = message
	rec.FinishedAt = &at
	return nil
}

func (f *fakeRecordStore) UpdateHostThread(ctx context.Context, id, host, thread string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Host = host
	rec.Thread = thread
	return nil
}

func (f *fakeRecordStore) AppendLogLine(ctx context.Context, id string, line store.LogLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = append(rec.LogLines, line)
	return nil
}

func (f *fakeRecordStore) SetLogLines(ctx context.Context, id string, lines []store.LogLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = lines
	return nil
}

func (f *fakeRecordStore) SetStatusMessage(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.StatusMessage = message
	return nil
}

func (f *fakeRecordStore) InsertAdditionalData(ctx context.Context, id, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeRecordStore) AddAdditionalData(ctx context.Context, id, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeRecordStore) SetAbortRequested(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.AbortRequested = true
	return nil
}

// fakeDefinitionStore is an in-memory stand-in for store.DefinitionStore.
type fakeDefinitionStore struct {
	mu   sync.Mutex
	defs map[string]*store.JobDefinition
}

func newFakeDefinitionStore() *fakeDefinitionStore {
	return &fakeDefinitionStore{defs: make(map[string]*store.JobDefinition)}
}

func (f *fakeDefinitionStore) Upsert(ctx context.Context, def *store.JobDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *def
	f.defs[def.Name] = &clone
	return nil
}

func (f *fakeDefinitionStore) FindDefinitionByName(ctx context.Context, name string) (*store.JobDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *def
	return &clone, nil
}

func (f *fakeDefinitionStore) FindAllDefinitions(ctx context.Context) ([]*store.JobDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.JobDefinition
	for _, def := range f.defs {
		clone := *def
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeDefinitionStore) SetDisabled(ctx context.Context, name string, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[name]
	if !ok {
		return store.ErrNotFound
	}
	def.Disabled = disabled
	return nil
}
