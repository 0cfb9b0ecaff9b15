package remote

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

type staticScripts struct {
	archive []byte
	err     error
}

func (s staticScripts) Archive(name string) (*bytes.Reader, error) {
	if s.err != nil {
		return nil, s.err
	}
	return bytes.NewReader(s.archive), nil
}

func newExecutionContext(rec *store.JobRecord) *registry.ExecutionContext {
	return registry.NewExecutionContext(rec, store.PriorityCheckPreconditions, func(string) {}, func(key, value string) {
		if rec.AdditionalData == nil {
			rec.AdditionalData = store.NewOrderedMap()
		}
		rec.AdditionalData.Set(key, value)
	})
}

func TestRunnableExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", "/jobs/abc")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec := &store.JobRecord{ID: "r1", Name: "cleanup-job", AdditionalData: store.NewOrderedMap()}
	run := NewRunnable("cleanup-job", NewClient(srv.URL), staticScripts{archive: []byte("x")}, 0, 0, 1000, false)

	result := run.Execute(context.Background(), newExecutionContext(rec))
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	uri, ok := rec.AdditionalData.Get(store.DataKeyRemoteJobURI)
	if !ok || uri != srv.URL+"/jobs/abc" {
		t.Errorf("expected remote job uri recorded, got %q ok=%v", uri, ok)
	}
}

func TestRunnableExecute_AlreadyRunningResumes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", "/jobs/existing")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &store.JobRecord{ID: "r1", Name: "cleanup-job", AdditionalData: store.NewOrderedMap()}
	run := NewRunnable("cleanup-job", NewClient(srv.URL), staticScripts{archive: []byte("x")}, 0, 0, 1000, false)

	result := run.Execute(context.Background(), newExecutionContext(rec))
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	uri, _ := rec.AdditionalData.Get(store.DataKeyRemoteJobURI)
	if uri != srv.URL+"/jobs/existing" {
		t.Errorf("expected resumed job uri, got %q", uri)
	}
	if _, ok := rec.AdditionalData.Get(store.DataKeyResumedAlreadyRunning); !ok {
		t.Error("expected resumed-already-running marker set")
	}
}

func TestRunnableExecute_ArchiveErrorIsTerminal(t *testing.T) {
	rec := &store.JobRecord{ID: "r1", Name: "cleanup-job", AdditionalData: store.NewOrderedMap()}
	run := NewRunnable("cleanup-job", NewClient("http://unused"), staticScripts{err: errors.New("boom")}, 0, 0, 1000, false)

	result := run.Execute(context.Background(), newExecutionContext(rec))
	if result.Err == nil {
		t.Fatal("expected terminal error when archive load fails")
	}
}

func TestRunnableExecute_StartFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &store.JobRecord{ID: "r1", Name: "cleanup-job", AdditionalData: store.NewOrderedMap()}
	run := NewRunnable("cleanup-job", NewClient(srv.URL), staticScripts{archive: []byte("x")}, 0, 0, 1000, false)

	result := run.Execute(context.Background(), newExecutionContext(rec))
	if result.Err == nil {
		t.Fatal("expected terminal error on start failure")
	}
}

func TestRunnableAccessors(t *testing.T) {
	run := NewRunnable("cleanup-job", NewClient("http://unused"), staticScripts{}, 60000, 5000, 10000, true)
	if run.Name() != "cleanup-job" || run.MaxExecutionMs() != 60000 || run.MaxIdleMs() != 5000 {
		t.Errorf("unexpected accessors: %+v", run)
	}
	if !run.IsRemote() || !run.IsAbortable() || run.PollingIntervalMs() != 10000 {
		t.Errorf("unexpected flag accessors: %+v", run)
	}
}
