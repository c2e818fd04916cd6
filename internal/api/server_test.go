package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/printworker/internal/archive"
	"github.com/orrn/printworker/internal/config"
	"github.com/orrn/printworker/internal/core"
	"github.com/orrn/printworker/internal/render"
)

const testPassword = "kassa-1234"

type fakeReader struct {
	jobs map[string]*core.PrintJob
	err  error
}

func (r *fakeReader) GetJob(_ context.Context, id string) (*core.PrintJob, error) {
	if r.err != nil {
		return nil, r.err
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	return job, nil
}

func (r *fakeReader) ListJobs(_ context.Context, status core.JobStatus, limit, offset int) ([]*core.PrintJob, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*core.PrintJob
	for _, job := range r.jobs {
		if status == "" || job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *fakeReader) CountByStatus(_ context.Context) (*core.QueueStats, error) {
	if r.err != nil {
		return nil, r.err
	}
	stats := &core.QueueStats{}
	for _, job := range r.jobs {
		stats.Add(job.Status, 1)
	}
	return stats, nil
}

type fakePoller struct {
	busy  bool
	polls int
}

func (p *fakePoller) TryPoll(context.Context) (core.CycleResult, bool) {
	if p.busy {
		return core.CycleResult{}, false
	}
	p.polls++
	return core.CycleResult{Claimed: 2, Completed: 2}, true
}

func (p *fakePoller) Busy() bool                   { return p.busy }
func (p *fakePoller) LastCycle() *core.CycleResult { return nil }

type fakeDocuments map[string]string

func (d fakeDocuments) Document(_ context.Context, jobID string, _ time.Time) (string, error) {
	doc, ok := d[jobID]
	if !ok {
		return "", archive.ErrNotArchived
	}
	return doc, nil
}

type fakeMetrics struct{}

func (fakeMetrics) GetSnapshot() map[string]int64 { return map[string]int64{"cycles": 3} }

type testEnv struct {
	handler http.Handler
	reader  *fakeReader
	poller  *fakePoller
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	printed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := &fakeReader{jobs: map[string]*core.PrintJob{
		"job-1": {ID: "job-1", Type: core.JobTypeReceipt, Status: core.JobStatusCompleted, PrintedAt: &printed},
		"job-2": {ID: "job-2", Type: core.JobTypeLabel, Status: core.JobStatusPending},
		"job-3": {ID: "job-3", Type: core.JobTypeReport, Status: core.JobStatusCompleted, PrintedAt: &printed},
	}}
	poller := &fakePoller{}

	srv, err := NewServer(config.ServerConfig{
		Port:           0,
		PasswordHash:   string(hash),
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:5173"},
	}, Deps{
		Worker:    poller,
		Reader:    reader,
		Renderer:  render.NewRenderer(render.Profile{ShopName: "SHOP", Currency: " T", Width: 32}, nil),
		Metrics:   fakeMetrics{},
		Documents: fakeDocuments{"job-1": "SHOP\nSALES RECEIPT\n"},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}

	env := &testEnv{handler: srv.Handler(), reader: reader, poller: poller}

	body, _ := json.Marshal(map[string]string{"password": testPassword})
	w := env.do(http.MethodPost, "/api/auth/login", body, false)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	env.token = resp.Token
	return env
}

func (e *testEnv) do(method, path string, body []byte, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/health", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/stats", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w := env.do(http.MethodGet, "/api/stats", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Queue   core.QueueStats  `json:"queue"`
		Metrics map[string]int64 `json:"metrics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Queue.Completed != 2 || resp.Queue.Pending != 1 || resp.Queue.Total != 3 {
		t.Errorf("unexpected queue stats %+v", resp.Queue)
	}
	if resp.Metrics["cycles"] != 3 {
		t.Errorf("expected metrics in stats, got %v", resp.Metrics)
	}
}

func TestStats_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.reader.err = fmt.Errorf("%w: connection refused", core.ErrStoreUnavailable)

	if w := env.do(http.MethodGet, "/api/stats", nil, true); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestPoll(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/poll", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.poller.polls != 1 {
		t.Errorf("expected one poll, got %d", env.poller.polls)
	}

	env.poller.busy = true
	if w := env.do(http.MethodPost, "/api/poll", nil, true); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", w.Code)
	}
	if env.poller.polls != 1 {
		t.Errorf("busy poll must not run a cycle, got %d", env.poller.polls)
	}
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/jobs?status=completed", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Count int              `json:"count"`
		Jobs  []*core.PrintJob `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 2 {
		t.Errorf("expected 2 completed jobs, got %d", list.Count)
	}

	if w := env.do(http.MethodGet, "/api/jobs?status=lost", nil, true); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/jobs?limit=1000", nil, true); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized limit, got %d", w.Code)
	}

	if w := env.do(http.MethodGet, "/api/jobs/job-2", nil, true); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/jobs/nope", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestJobDocument(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/jobs/job-1/document", nil, true)
	if w.Code != http.StatusOK || w.Body.String() != "SHOP\nSALES RECEIPT\n" {
		t.Errorf("expected archived document, got %d %q", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/api/jobs/job-2/document", nil, true); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a pending job, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/jobs/job-3/document", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a job without archive, got %d", w.Code)
	}
}

func TestRenderPreview(t *testing.T) {
	env := newTestEnv(t)

	payload := []byte(`{"name":"Dress","barcode":"4870001234567","size":"M","price":12000}`)
	w := env.do(http.MethodPost, "/api/render/label", payload, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "4870001234567") {
		t.Errorf("expected barcode in preview, got %q", w.Body.String())
	}

	if w := env.do(http.MethodPost, "/api/render/invoice", payload, true); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown type, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/render/label", []byte(`{"name":"Dress"}`), true); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing barcode, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
