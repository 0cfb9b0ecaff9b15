package local

import (
	"context"
	"sync"
	"time"

	"jobplane/internal/store"
)

// fakeRecordStore is a minimal store.RecordStore backing a single record,
// just enough for watchAbort's FindByID polling in tests; everything else
// a Runnable doesn't touch is a no-op.
type fakeRecordStore struct {
	mu  sync.Mutex
	rec *store.JobRecord
}

func newFakeRecordStore() *fakeRecordStore { return &fakeRecordStore{} }

func (f *fakeRecordStore) CreateUnique(ctx context.Context, rec *store.JobRecord) (*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) FindByID(ctx context.Context, id string) (*store.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec == nil || f.rec.ID != id {
		return nil, store.ErrNotFound
	}
	clone := *f.rec
	return &clone, nil
}
func (f *fakeRecordStore) FindByName(ctx context.Context, name string, limit int) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) FindByNameAndState(ctx context.Context, name string, state store.RunningState) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) FindByNameAndTimeRange(ctx context.Context, name string, resultCode store.ResultCode, from, to time.Time) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) FindQueuedSortedAscByCreation(ctx context.Context, name string) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) FindRunning(ctx context.Context) ([]*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) HasJob(ctx context.Context, name string) (bool, error) { return false, nil }
func (f *fakeRecordStore) Remove(ctx context.Context, id string) error           { return nil }
func (f *fakeRecordStore) ActivateQueuedJob(ctx context.Context, id, host, thread string, startedAt time.Time) (*store.JobRecord, error) {
	return nil, nil
}
func (f *fakeRecordStore) MarkQueuedAsNotExecuted(ctx context.Context, id, message string, at time.Time) error {
	return nil
}
func (f *fakeRecordStore) MarkRunningAsFinished(ctx context.Context, id string, result store.ResultCode, message string, at time.Time) error {
	return nil
}
func (f *fakeRecordStore) UpdateHostThread(ctx context.Context, id, host, thread string) error {
	return nil
}
func (f *fakeRecordStore) AppendLogLine(ctx context.Context, id string, line store.LogLine) error {
	return nil
}
func (f *fakeRecordStore) SetLogLines(ctx context.Context, id string, lines []store.LogLine) error {
	return nil
}
func (f *fakeRecordStore) SetStatusMessage(ctx context.Context, id, message string) error {
	return nil
}
func (f *fakeRecordStore) InsertAdditionalData(ctx context.Context, id, key, value string) error {
	return nil
}
func (f *fakeRecordStore) AddAdditionalData(ctx context.Context, id, key, value string) error {
	return nil
}
func (f *fakeRecordStore) SetAbortRequested(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec != nil && f.rec.ID == id {
		f.rec.AbortRequested = true
	}
	return nil
}
