package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"jobplane/internal/scheduler"
	"jobplane/internal/store"
	"jobplane/pkg/api"
)

// ListJobs handles GET /jobs: an Atom feed of every registered job name.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	names := h.scheduler.ListJobNames()
	feed := api.NewJobNameFeed("/jobs", names, atomNow())
	h.respondAtom(w, http.StatusOK, feed)
}

// EnableJobs handles POST /jobs/enable: turns scheduler-wide execution on.
func (h *Handlers) EnableJobs(w http.ResponseWriter, r *http.Request) {
	h.scheduler.SetExecutionEnabled(true)
	h.writeStatus(w, r)
}

// DisableJobs handles POST /jobs/disable: turns scheduler-wide execution off.
func (h *Handlers) DisableJobs(w http.ResponseWriter, r *http.Request) {
	h.scheduler.SetExecutionEnabled(false)
	h.writeStatus(w, r)
}

// JobsStatus handles GET /jobs/status.
func (h *Handlers) JobsStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r)
}

func (h *Handlers) writeStatus(w http.ResponseWriter, r *http.Request) {
	status := "disabled"
	if h.scheduler.IsExecutionEnabled() {
		status = "enabled"
	}
	running, err := h.scheduler.HasLocalRunningJobs(r.Context())
	if err != nil {
		h.httpError(w, r, "failed to check running jobs", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.StatusResponse{Status: status, LocalRunningJobs: running})
}

// ExecuteJob handles POST /jobs/{name}: each query parameter becomes a job
// parameter, and the request is always admitted with FORCE_EXECUTION.
func (h *Handlers) ExecuteJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	params := store.NewOrderedMap()
	for key, values := range r.URL.Query() {
		if len(values) != 1 || values[0] == "" {
			h.httpError(w, r, "parameter "+key+" must have exactly one non-empty value", http.StatusBadRequest)
			return
		}
		params.Set(key, values[0])
	}

	rec, err := h.scheduler.ExecuteJob(r.Context(), name, store.PriorityForceExecution, params)
	if err != nil {
		h.httpError(w, r, err.Error(), schedulerErrorStatus(err))
		return
	}

	w.Header().Set("Location", "/jobs/"+name+"/"+rec.ID)
	h.respondJson(w, http.StatusCreated, toAPIRecord(rec))
}

// GetJobRecords handles GET /jobs/{name}?size=N: the job's most recent
// records, newest first, as an Atom feed.
func (h *Handlers) GetJobRecords(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	size := 10
	if s := r.URL.Query().Get("size"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			size = parsed
		}
	}

	records, err := h.deps.FindByName(r.Context(), name, size)
	if err != nil {
		h.httpError(w, r, "failed to list records", http.StatusInternalServerError)
		return
	}

	apiRecords := make([]api.JobRecord, len(records))
	for i, rec := range records {
		apiRecords[i] = toAPIRecord(rec)
	}
	feed := api.NewRecordFeed("/jobs/"+name, apiRecords, encodeRecordJSON, atomNow())
	h.respondAtom(w, http.StatusOK, feed)
}

// EnableJob handles POST /jobs/{name}/enable.
func (h *Handlers) EnableJob(w http.ResponseWriter, r *http.Request) {
	h.setJobEnabled(w, r, true)
}

// DisableJob handles POST /jobs/{name}/disable.
func (h *Handlers) DisableJob(w http.ResponseWriter, r *http.Request) {
	h.setJobEnabled(w, r, false)
}

func (h *Handlers) setJobEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := r.PathValue("name")
	if err := h.scheduler.SetJobExecutionEnabled(r.Context(), name, enabled); err != nil {
		h.httpError(w, r, err.Error(), schedulerErrorStatus(err))
		return
	}
	h.writeStatus(w, r)
}

// GetJobRecord handles GET /jobs/{name}/{id}.
func (h *Handlers) GetJobRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.deps.FindByID(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			h.httpError(w, r, "no such job record", http.StatusNotFound)
			return
		}
		h.httpError(w, r, "failed to fetch job record", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, toAPIRecord(rec))
}

// AbortJobRecord handles POST /jobs/{name}/{id}/abort.
func (h *Handlers) AbortJobRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.scheduler.AbortJob(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			h.httpError(w, r, "no such job record", http.StatusNotFound)
			return
		}
		if _, ok := err.(*scheduler.JobNotAbortableError); ok {
			h.httpError(w, r, err.Error(), http.StatusForbidden)
			return
		}
		h.httpError(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.AbortResponse{ID: id, Aborted: true})
}

// JobHistory handles GET /jobs/history?hours=H&resultCode=…&jobName=….
func (h *Handlers) JobHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	hours := 24
	if hStr := query.Get("hours"); hStr != "" {
		if parsed, err := strconv.Atoi(hStr); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	var resultCode store.ResultCode
	if rc := query.Get("resultCode"); rc != "" {
		resultCode = store.ResultCode(rc)
	}
	jobName := query.Get("jobName")

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	names := []string{jobName}
	if jobName == "" {
		names = h.scheduler.ListJobNames()
	}

	result := make(api.HistoryResponse, len(names))
	for _, name := range names {
		records, err := h.deps.FindByNameAndTimeRange(r.Context(), name, resultCode, from, to)
		if err != nil {
			h.httpError(w, r, "failed to query history", http.StatusInternalServerError)
			return
		}
		apiRecords := make([]api.JobRecord, len(records))
		for i, rec := range records {
			apiRecords[i] = toAPIRecord(rec)
		}
		result[name] = apiRecords
	}

	h.respondJson(w, http.StatusOK, result)
}

func atomNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z07:00")
}

func encodeRecordJSON(rec api.JobRecord) string {
	body, _ := json.Marshal(rec)
	return string(body)
}

func toAPIRecord(rec *store.JobRecord) api.JobRecord {
	out := api.JobRecord{
		ID:                rec.ID,
		Name:              rec.Name,
		Host:              rec.Host,
		Thread:            rec.Thread,
		RunningState:      string(rec.RunningState),
		ExecutionPriority: string(rec.ExecutionPriority),
		ResultMessage:     rec.ResultMessage,
		StatusMessage:     rec.StatusMessage,
		CreatedAt:         rec.CreatedAt,
		StartedAt:         rec.StartedAt,
		FinishedAt:        rec.FinishedAt,
		LastModifiedAt:    rec.LastModifiedAt,
		AbortRequested:    rec.AbortRequested,
	}
	if rec.ResultCode != nil {
		out.ResultCode = string(*rec.ResultCode)
	}
	if rec.Parameters != nil {
		for _, p := range rec.Parameters.Pairs() {
			out.Parameters = append(out.Parameters, api.DataEntry{Key: p.Key, Value: p.Value})
		}
	}
	if rec.AdditionalData != nil {
		for _, p := range rec.AdditionalData.Pairs() {
			out.AdditionalData = append(out.AdditionalData, api.DataEntry{Key: p.Key, Value: p.Value})
		}
	}
	for _, l := range rec.LogLines {
		out.LogLines = append(out.LogLines, api.LogLine{Timestamp: l.Timestamp, Text: l.Text})
	}
	return out
}
