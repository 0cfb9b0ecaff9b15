package cmd

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobplane/pkg/api"
)

// Client handles API calls to the jobplane controller.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient builds a Client for the controller at baseURL, authenticating
// requests with token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError represents a non-2xx response from the controller.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(method, path string, body io.Reader, authHeader string) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	} else if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

// ListJobNames calls GET /jobs and returns the registered job names parsed
// out of the Atom feed's entry titles.
func (c *Client) ListJobNames() ([]string, error) {
	body, err := c.do(http.MethodGet, "/jobs", nil, "")
	if err != nil {
		return nil, err
	}
	var feed api.Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	names := make([]string, len(feed.Entries))
	for i, e := range feed.Entries {
		names[i] = e.Title
	}
	return names, nil
}

// Status calls GET /jobs/status.
func (c *Client) Status() (*api.StatusResponse, error) {
	body, err := c.do(http.MethodGet, "/jobs/status", nil, "")
	if err != nil {
		return nil, err
	}
	var status api.StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &status, nil
}

// SetExecutionEnabled calls POST /jobs/enable or /jobs/disable.
func (c *Client) SetExecutionEnabled(enabled bool) (*api.StatusResponse, error) {
	path := "/jobs/disable"
	if enabled {
		path = "/jobs/enable"
	}
	body, err := c.do(http.MethodPost, path, nil, "")
	if err != nil {
		return nil, err
	}
	var status api.StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &status, nil
}

// SetJobExecutionEnabled calls POST /jobs/{name}/enable or /disable.
func (c *Client) SetJobExecutionEnabled(name string, enabled bool) (*api.StatusResponse, error) {
	path := fmt.Sprintf("/jobs/%s/disable", name)
	if enabled {
		path = fmt.Sprintf("/jobs/%s/enable", name)
	}
	body, err := c.do(http.MethodPost, path, nil, "")
	if err != nil {
		return nil, err
	}
	var status api.StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &status, nil
}

// ExecuteJob calls POST /jobs/{name}, passing params as query parameters.
func (c *Client) ExecuteJob(name string, params map[string]string) (*api.JobRecord, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	path := "/jobs/" + name
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	body, err := c.do(http.MethodPost, path, nil, "")
	if err != nil {
		return nil, err
	}
	var rec api.JobRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &rec, nil
}

// JobRecords calls GET /jobs/{name}?size=N and decodes each Atom entry's
// inlined JSON content into a JobRecord.
func (c *Client) JobRecords(name string, size int) ([]api.JobRecord, error) {
	path := fmt.Sprintf("/jobs/%s?size=%d", name, size)
	body, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	var feed api.Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	records := make([]api.JobRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		var rec api.JobRecord
		if err := json.Unmarshal([]byte(e.Content.Body), &rec); err != nil {
			return nil, fmt.Errorf("parse entry content: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetJobRecord calls GET /jobs/{name}/{id}.
func (c *Client) GetJobRecord(name, id string) (*api.JobRecord, error) {
	body, err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%s/%s", name, id), nil, "")
	if err != nil {
		return nil, err
	}
	var rec api.JobRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &rec, nil
}

// AbortJobRecord calls POST /jobs/{name}/{id}/abort.
func (c *Client) AbortJobRecord(name, id string) (*api.AbortResponse, error) {
	body, err := c.do(http.MethodPost, fmt.Sprintf("/jobs/%s/%s/abort", name, id), nil, "")
	if err != nil {
		return nil, err
	}
	var resp api.AbortResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// History calls GET /jobs/history with the given filters; any of jobName
// or resultCode may be empty to mean "unfiltered".
func (c *Client) History(hours int, jobName, resultCode string) (api.HistoryResponse, error) {
	query := url.Values{}
	if hours > 0 {
		query.Set("hours", fmt.Sprintf("%d", hours))
	}
	if jobName != "" {
		query.Set("jobName", jobName)
	}
	if resultCode != "" {
		query.Set("resultCode", resultCode)
	}
	path := "/jobs/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	body, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	var result api.HistoryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

// CreateTenant calls POST /tenants, authenticated with internalSecret
// rather than a tenant token.
func (c *Client) CreateTenant(req api.CreateTenantRequest, internalSecret string) (*api.CreateTenantResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(http.MethodPost, "/tenants", bytes.NewReader(payload), "Bearer "+internalSecret)
	if err != nil {
		return nil, err
	}
	var resp api.CreateTenantResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}
