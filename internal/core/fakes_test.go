package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var errFakeDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu    sync.Mutex
	jobs  map[string]*PrintJob
	order []string

	listErr    error
	claimErrOn string
	writeErr   error

	// stolen jobs are claimed by "another worker" between list and claim.
	stolen map[string]bool

	claims []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:   make(map[string]*PrintJob),
		stolen: make(map[string]bool),
	}
}

func (s *fakeStore) add(job *PrintJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
}

func (s *fakeStore) get(id string) PrintJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *fakeStore) countStatus(status JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

func (s *fakeStore) ListPending(ctx context.Context, limit int) ([]*PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []*PrintJob
	for _, id := range s.order {
		j := s.jobs[id]
		if j.Status == JobStatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return jobLess(out[a], out[b]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ClaimJob(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.claimErrOn {
		return false, errFakeDown
	}
	j, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	if s.stolen[id] {
		j.Status = JobStatusPrinting
	}
	if j.Status != JobStatusPending {
		return false, nil
	}
	j.Status = JobStatusPrinting
	s.claims = append(s.claims, id)
	return true, nil
}

func (s *fakeStore) finish(id string, status JobStatus, printedAt *time.Time, msg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	j, ok := s.jobs[id]
	if !ok || j.Status != JobStatusPrinting {
		return fmt.Errorf("%w: job %s is not printing", ErrClaimConflict, id)
	}
	j.Status = status
	j.PrintedAt = printedAt
	j.Error = msg
	return nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, id string, printedAt time.Time) error {
	return s.finish(id, JobStatusCompleted, &printedAt, nil)
}

func (s *fakeStore) FailJob(ctx context.Context, id string, message string) error {
	return s.finish(id, JobStatusFailed, nil, &message)
}

type fakeRenderer struct {
	err map[string]error
}

func (r *fakeRenderer) Render(docType string, payload json.RawMessage) (string, error) {
	if err := r.err[string(payload)]; err != nil {
		return "", err
	}
	return docType + ":" + string(payload) + "\n", nil
}

type fakeTransport struct {
	mu        sync.Mutex
	delivered []string
	failOn    map[string]error

	// when set, Deliver signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func (t *fakeTransport) Deliver(ctx context.Context, text string) (string, error) {
	if t.started != nil {
		t.started <- struct{}{}
		<-t.release
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failOn[text]; err != nil {
		return "", err
	}
	t.delivered = append(t.delivered, text)
	return "request id is XP-58-1 (1 file(s))", nil
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.delivered)
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *recordingSink) JobFinished(ctx context.Context, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

type countingObserver struct {
	started, skipped, storeErrors int
	mu                            sync.Mutex
}

func (o *countingObserver) CycleStarted() { o.mu.Lock(); o.started++; o.mu.Unlock() }
func (o *countingObserver) CycleSkipped() { o.mu.Lock(); o.skipped++; o.mu.Unlock() }
func (o *countingObserver) StoreError()   { o.mu.Lock(); o.storeErrors++; o.mu.Unlock() }

func testJob(id string, priority int, created time.Time) *PrintJob {
	return &PrintJob{
		ID:        id,
		Type:      JobTypeLabel,
		Payload:   json.RawMessage(`"` + id + `"`),
		Priority:  priority,
		CreatedAt: created,
	}
}
