package remote

import (
	"context"
	"time"

	"jobplane/internal/store"
)

type fakeStore struct {
	records map[string]*store.JobRecord
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[string]*store.JobRecord)} }

func (f *fakeStore) CreateUnique(ctx context.Context, rec *store.JobRecord) (*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindByID(ctx context.Context, id string) (*store.JobRecord, error) {
	return f.records[id], nil
}
func (f *fakeStore) FindByName(ctx context.Context, name string, limit int) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindByNameAndState(ctx context.Context, name string, state store.RunningState) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, r := range f.records {
		if r.Name == name && r.RunningState == state {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStore) FindByNameAndTimeRange(ctx context.Context, name string, resultCode store.ResultCode, from, to time.Time) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeStore) FindRunning(ctx context.Context) ([]*store.JobRecord, error) {
	var out []*store.JobRecord
	for _, r := range f.records {
		if r.RunningState == store.RunningStateRunning {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStore) HasJob(ctx context.Context, name string) (bool, error) { return false, nil }
func (f *fakeStore) Remove(ctx context.Context, id string) error           { delete(f.records, id); return nil }
func (f *fakeStore) ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeStore) MarkQueuedAsNotExecuted(ctx context.Context, id, message string, at time.Time) error {
	return nil
}
func (f *fakeStore) MarkRunningAsFinished(ctx context.Context, id string, result store.ResultCode, message string, at time.Time) error {
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
func (f *fakeStore) UpdateHostThread(ctx context.Context, id, host, thread string) error { return nil }
func (f *fakeStore) AppendLogLine(ctx context.Context, id string, line store.LogLine) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = append(rec.LogLines, line)
	return nil
}
func (f *fakeStore) SetLogLines(ctx context.Context, id string, lines []store.LogLine) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.LogLines = lines
	return nil
}
func (f *fakeStore) SetStatusMessage(ctx context.Context, id, message string) error {
	rec, ok := f.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.StatusMessage = message
	return nil
}
func (f *fakeStore) InsertAdditionalData(ctx context.Context, id, key, value string) error {
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
func (f *fakeStore) AddAdditionalData(ctx context.Context, id, key, value string) error {
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
func (f *fakeStore) SetAbortRequested(ctx context.Context, id string) error { return nil }
