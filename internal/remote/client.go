// Package remote triggers and supervises jobs that execute on a remote
// executor host over HTTP, using the multipart script-transfer protocol: a
// tar.gz of scripts plus a JSON parameter blob posted to
// "<executorURI>/<name>/start".
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

const (
	connectTimeout = 5 * time.Second
	readTimeout    = 20 * time.Second
)

// Status is the lifecycle state of a job as reported by the remote executor.
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
)

// Result carries the outcome of a finished remote job.
type Result struct {
	OK       bool   `json:"ok"`
	ExitCode int    `json:"exit_code"`
	Message  string `json:"message"`
}

// JobStatus mirrors the JSON document returned by GET <jobURI>.
type JobStatus struct {
	Status     Status   `json:"status"`
	LogLines   []string `json:"log_lines"`
	Result     *Result  `json:"result,omitempty"`
	FinishTime string   `json:"finish_time,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// AlreadyRunningError means the remote executor reports name is already
// running under JobURI; the caller should resume tracking that job instead
// of treating the start request as failed.
type AlreadyRunningError struct {
	Name   string
	JobURI string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("remote job %s already running at %s", e.Name, e.JobURI)
}

// NotRunningError means the remote executor returned 403 for a stop
// request: the job isn't running (it may have already finished).
type NotRunningError struct {
	JobURI string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("remote job not running: %s", e.JobURI)
}

// Client starts, polls, and stops jobs on a single remote executor host.
type Client struct {
	executorURI string
	httpClient  *http.Client
}

// NewClient builds a Client for the executor reachable at executorURI
// (e.g. "http://executor-host:7070/"). Requests time out after
// connectTimeout + readTimeout combined, matching the original executor's
// 5s connect / 20s read budget.
func NewClient(executorURI string) *Client {
	return &Client{
		executorURI: executorURI,
		httpClient: &http.Client{
			Timeout: connectTimeout + readTimeout,
		},
	}
}

// StartJob uploads scripts (a tar.gz archive) and params (arbitrary JSON
// parameters) to start name running remotely, returning the job's URI.
// If the executor reports the job is already running, it returns the
// existing job's URI wrapped in an AlreadyRunningError instead of an error
// the caller should treat as a failed start.
func (c *Client) StartJob(ctx context.Context, name string, scripts io.Reader, params map[string]string) (string, error) {
	startURL, err := url.JoinPath(c.executorURI, name, "start")
	if err != nil {
		return "", fmt.Errorf("build start url: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	scriptsPart, err := writer.CreateFormFile("scripts", "scripts.tar.gz")
	if err != nil {
		return "", fmt.Errorf("create scripts part: %w", err)
	}
	if _, err := io.Copy(scriptsPart, scripts); err != nil {
		return "", fmt.Errorf("write scripts part: %w", err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	paramsPart, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="params"`},
		"Content-Type":         {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return "", fmt.Errorf("create params part: %w", err)
	}
	if _, err := paramsPart.Write(paramsJSON); err != nil {
		return "", fmt.Errorf("write params part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, body)
	if err != nil {
		return "", fmt.Errorf("build start request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Connection", "close")
	req.Header.Set("User-Agent", "jobplane-remote-client")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post scripts: url=%s: %w", startURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	link := resp.Header.Get("Link")
	jobURI := c.resolveLink(link)
	switch resp.StatusCode {
	case http.StatusCreated:
		return jobURI, nil
	case http.StatusOK, http.StatusSeeOther:
		return "", &AlreadyRunningError{Name: name, JobURI: jobURI}
	default:
		return "", fmt.Errorf("unable to start remote job: url=%s rc=%d", startURL, resp.StatusCode)
	}
}

func (c *Client) resolveLink(link string) string {
	base, err := url.Parse(c.executorURI)
	if err != nil || link == "" {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// GetStatus fetches the current JobStatus for jobURI.
func (c *Client) GetStatus(ctx context.Context, jobURI string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURI, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: url=%s: %w", jobURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get status: url=%s rc=%d", jobURI, resp.StatusCode)
	}
	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: url=%s: %w", jobURI, err)
	}
	return &status, nil
}

// StopJob requests that the remote job at jobURI be stopped. A 403
// response means the job isn't running and is surfaced as NotRunningError.
func (c *Client) StopJob(ctx context.Context, jobURI string) error {
	stopURL := jobURI + "/stop"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stopURL, nil)
	if err != nil {
		return fmt.Errorf("build stop request: %w", err)
	}
	req.Header.Set("Connection", "close")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stop job: url=%s: %w", stopURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode == http.StatusForbidden {
		return &NotRunningError{JobURI: jobURI}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("stop job: url=%s rc=%d", stopURL, resp.StatusCode)
	}
	return nil
}

// IsAlive reports whether the remote executor host responds at all.
func (c *Client) IsAlive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.executorURI, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
