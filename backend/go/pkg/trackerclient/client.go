package trackerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"JobPilot/backend/go/pkg/models"
	jphttp "JobPilot/backend/go/pkg/http"
)

// APIError is a non-2xx answer from the tracker service. The body is the
// uniform {"error": message} object every handler writes.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api: %d %s", e.StatusCode, e.Message)
}

// TaskHandle is the {task_id, status} body returned by every endpoint
// that submits a background task.
type TaskHandle struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// TaskSnapshot is the polling contract of GET /api/tasks/:id.
type TaskSnapshot struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
}

// ImportResult reports the outcome of a spreadsheet import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Client is a typed client for the tracker service REST API.
type Client struct {
	baseURL string
	http    *jphttp.Client
}

// New creates a Client for the service at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, httpClient *jphttp.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// do runs a request and decodes the JSON answer into out (when non-nil).
// Non-2xx answers become an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &body); jsonErr == nil && body.Error != "" {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListCompanies fetches every tracked company, sorted by name.
func (c *Client) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := c.do(ctx, http.MethodGet, "/api/companies", nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// GetCompany fetches a single company by name.
func (c *Client) GetCompany(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company
	if err := c.do(ctx, http.MethodGet, companyPath(name), nil, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// CreateCompany adds a company to the tracker.
func (c *Client) CreateCompany(ctx context.Context, name, recruiterMessage string) (*models.Company, error) {
	body := map[string]string{"name": name, "recruiter_message": recruiterMessage}
	var company models.Company
	if err := c.do(ctx, http.MethodPost, "/api/companies", body, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// ImportCompanies uploads an xlsx spreadsheet of companies.
func (c *Client) ImportCompanies(ctx context.Context, filename string, spreadsheet io.Reader) (*ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, spreadsheet); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/companies/import", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ImportResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartResearch submits a research task for the company.
func (c *Client) StartResearch(ctx context.Context, name string) (*TaskHandle, error) {
	var handle TaskHandle
	if err := c.do(ctx, http.MethodPost, companyPath(name)+"/research", nil, &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// GenerateReply submits a reply-generation task for the company.
func (c *Client) GenerateReply(ctx context.Context, name string) (*TaskHandle, error) {
	var handle TaskHandle
	if err := c.do(ctx, http.MethodPost, companyPath(name)+"/reply_message", nil, &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// UpdateReply overwrites the draft reply for the company.
func (c *Client) UpdateReply(ctx context.Context, name, message string) (*models.Company, error) {
	body := map[string]string{"message": message}
	var company models.Company
	if err := c.do(ctx, http.MethodPut, companyPath(name)+"/reply_message", body, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// SendAndArchive sends the drafted reply and archives the company.
func (c *Client) SendAndArchive(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company
	if err := c.do(ctx, http.MethodPost, companyPath(name)+"/send_and_archive", nil, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// ScanRecruiterEmails submits an inbox scan task.
func (c *Client) ScanRecruiterEmails(ctx context.Context, req models.ScanRequest) (*TaskHandle, error) {
	var handle TaskHandle
	if err := c.do(ctx, http.MethodPost, "/api/scan_recruiter_emails", req, &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// GetTask fetches the polling snapshot of a background task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	var snap TaskSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// TaskListEntry is one row of GET /api/tasks.
type TaskListEntry struct {
	TaskID      string            `json:"task_id"`
	Kind        models.TaskKind   `json:"kind"`
	Company     string            `json:"company,omitempty"`
	Status      models.TaskStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// RecentTasks lists the most recently submitted tasks, newest first.
// A limit of 0 leaves the count to the server default.
func (c *Client) RecentTasks(ctx context.Context, limit int) ([]TaskListEntry, error) {
	path := "/api/tasks"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []TaskListEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Workers lists the pipeline workers currently registered in etcd.
func (c *Client) Workers(ctx context.Context) ([]string, error) {
	var body struct {
		Workers []string `json:"workers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/workers", nil, &body); err != nil {
		return nil, err
	}
	return body.Workers, nil
}

func companyPath(name string) string {
	return "/api/companies/" + url.PathEscape(name)
}
