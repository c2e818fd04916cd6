// Package reststore reaches a hosted job store through its PostgREST API,
// the way the POS front end itself talks to the backend.
package reststore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/orrn/printworker/internal/core"
)

var (
	_ core.JobStore  = (*Client)(nil)
	_ core.JobReader = (*Client)(nil)
)

// APIError is a non-2xx answer from PostgREST.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postgrest: http %d", e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("postgrest: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("postgrest: http %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

// New returns a client for the PostgREST root baseURL, for example
// https://project.supabase.co/rest/v1.
func New(baseURL, apiKey, table string, timeout time.Duration) *Client {
	if table == "" {
		table = "print_jobs"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      table,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) endpoint(q url.Values) string {
	return c.baseURL + "/" + url.PathEscape(c.table) + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method string, q url.Values, body any, prefer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(q), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}
	return resp, nil
}

// rows sends the request and decodes the returned representation.
func (c *Client) rows(ctx context.Context, op, method string, q url.Values, body any) ([]*core.PrintJob, error) {
	prefer := ""
	if method != http.MethodGet {
		prefer = "return=representation"
	}

	resp, err := c.do(ctx, method, q, body, prefer)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()

	jobs := []*core.PrintJob{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, unavailable(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return jobs, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", core.ErrStoreUnavailable, op, err)
}

func (c *Client) ListPending(ctx context.Context, limit int) ([]*core.PrintJob, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("status", "eq.pending")
	q.Set("order", "priority.asc,created_at.asc")
	q.Set("limit", strconv.Itoa(limit))
	return c.rows(ctx, "list pending jobs", http.MethodGet, q, nil)
}

// ClaimJob patches the row only while it is still pending. PostgREST returns
// the rows it changed, so exactly one row back means this worker won.
func (c *Client) ClaimJob(ctx context.Context, id string) (bool, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq.pending")
	changed, err := c.rows(ctx, "claim job", http.MethodPatch, q, map[string]any{
		"status": core.JobStatusPrinting,
	})
	if err != nil {
		return false, err
	}
	return len(changed) == 1, nil
}

func (c *Client) finish(ctx context.Context, op, id string, patch map[string]any) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq.printing")
	changed, err := c.rows(ctx, op, http.MethodPatch, q, patch)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return fmt.Errorf("%w: job %s is not printing", core.ErrClaimConflict, id)
	}
	return nil
}

func (c *Client) CompleteJob(ctx context.Context, id string, printedAt time.Time) error {
	return c.finish(ctx, "complete job", id, map[string]any{
		"status":     core.JobStatusCompleted,
		"printed_at": printedAt.UTC(),
		"error":      nil,
	})
}

func (c *Client) FailJob(ctx context.Context, id string, message string) error {
	return c.finish(ctx, "fail job", id, map[string]any{
		"status":     core.JobStatusFailed,
		"error":      message,
		"printed_at": nil,
	})
}

func (c *Client) GetJob(ctx context.Context, id string) (*core.PrintJob, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	jobs, err := c.rows(ctx, "get job", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, core.ErrJobNotFound
	}
	return jobs[0], nil
}

func (c *Client) ListJobs(ctx context.Context, status core.JobStatus, limit, offset int) ([]*core.PrintJob, error) {
	q := url.Values{}
	q.Set("select", "*")
	if status != "" {
		q.Set("status", "eq."+string(status))
	}
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.rows(ctx, "list jobs", http.MethodGet, q, nil)
}

// CountByStatus asks for an exact count per status and reads it from the
// Content-Range header.
func (c *Client) CountByStatus(ctx context.Context) (*core.QueueStats, error) {
	stats := &core.QueueStats{}
	statuses := []core.JobStatus{
		core.JobStatusPending,
		core.JobStatusPrinting,
		core.JobStatusCompleted,
		core.JobStatusFailed,
	}
	for _, status := range statuses {
		q := url.Values{}
		q.Set("select", "id")
		q.Set("status", "eq."+string(status))
		q.Set("limit", "1")

		resp, err := c.do(ctx, http.MethodGet, q, nil, "count=exact")
		if err != nil {
			return nil, unavailable("count jobs", err)
		}
		resp.Body.Close()

		n, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, unavailable("count jobs", err)
		}
		stats.Add(status, n)
	}
	return stats, nil
}

func parseContentRangeTotal(h string) (int, error) {
	i := strings.LastIndex(h, "/")
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("invalid content-range %q", h)
	}
	total := h[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range %q has no total", h)
	}
	return strconv.Atoi(total)
}
