package executorhost

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobplane/internal/remote"
	"jobplane/internal/runtime"

	"github.com/google/uuid"
)

// startParams is the JSON body of the "params" multipart part.
type startParams struct {
	Name       string            `json:"name"`
	ID         string            `json:"id"`
	Parameters map[string]string `json:"parameters"`
}

func (h *Host) handleStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	h.mu.Lock()
	if existing, ok := h.jobs[name]; ok && existing.status == remote.StatusRunning {
		h.mu.Unlock()
		w.Header().Set("Link", "/jobs/"+existing.id)
		w.WriteHeader(http.StatusOK)
		return
	}
	h.mu.Unlock()

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart form: %v", err), http.StatusBadRequest)
		return
	}

	scriptsFile, _, err := r.FormFile("scripts")
	if err != nil {
		http.Error(w, "missing scripts part", http.StatusBadRequest)
		return
	}
	defer scriptsFile.Close()

	paramsFile, _, err := r.FormFile("params")
	if err != nil {
		http.Error(w, "missing params part", http.StatusBadRequest)
		return
	}
	defer paramsFile.Close()

	var params startParams
	if err := json.NewDecoder(paramsFile).Decode(&params); err != nil {
		http.Error(w, fmt.Sprintf("decode params: %v", err), http.StatusBadRequest)
		return
	}
	if params.ID == "" {
		params.ID = uuid.NewString()
	}

	dir := filepath.Join(h.workDir, params.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		http.Error(w, fmt.Sprintf("create work dir: %v", err), http.StatusInternalServerError)
		return
	}
	if err := extractTarGz(scriptsFile, dir); err != nil {
		http.Error(w, fmt.Sprintf("extract scripts: %v", err), http.StatusBadRequest)
		return
	}

	env := make(map[string]string, len(params.Parameters)+1)
	for k, v := range params.Parameters {
		env[k] = v
	}
	env[runtime.JobIDEnvKey] = params.ID

	handle, err := h.rt.Start(r.Context(), runtime.StartOptions{
		Command: []string{filepath.Join(dir, "run.sh")},
		Env:     env,
		Dir:     dir,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("start job: %v", err), http.StatusInternalServerError)
		return
	}

	job := &jobState{id: params.ID, name: name, handle: handle, status: remote.StatusRunning}
	h.mu.Lock()
	h.jobs[name] = job
	h.byID[job.id] = job
	h.mu.Unlock()

	go h.supervise(job)

	w.Header().Set("Link", "/jobs/"+job.id)
	w.WriteHeader(http.StatusCreated)
}

// supervise streams job's combined output into its jobState as it runs,
// then records the final result once the process exits.
func (h *Host) supervise(job *jobState) {
	ctx := context.Background()

	if reader, err := job.handle.StreamLogs(ctx); err == nil {
		go h.pumpLogs(job, reader)
	}

	result, _ := job.handle.Wait(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	job.status = remote.StatusFinished
	job.finishTime = time.Now().UTC()
	job.result = &remote.Result{
		OK:       result.ExitCode == 0 && result.Error == nil,
		ExitCode: result.ExitCode,
		Message:  errMessage(result.Error),
	}
}

func (h *Host) pumpLogs(job *jobState, reader io.ReadCloser) {
	defer reader.Close()
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		h.mu.Lock()
		job.logLines = append(job.logLines, line)
		h.mu.Unlock()
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (h *Host) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	job, ok := h.byID[id]
	var status remote.JobStatus
	if ok {
		status = remote.JobStatus{
			Status:   job.status,
			LogLines: append([]string(nil), job.logLines...),
			Result:   job.result,
		}
		if !job.finishTime.IsZero() {
			status.FinishTime = job.finishTime.Format(time.RFC3339)
		}
	}
	h.mu.Unlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Host) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	job, ok := h.byID[id]
	h.mu.Unlock()

	if !ok || job.status != remote.StatusRunning {
		http.Error(w, "job not running", http.StatusForbidden)
		return
	}
	if err := job.handle.Stop(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("stop job: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// extractTarGz unpacks a gzip-compressed tar archive into dir, rejecting
// any entry that would escape dir via a relative path.
func extractTarGz(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target := filepath.Join(dir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
			return fmt.Errorf("tar entry escapes work dir: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
