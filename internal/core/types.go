package core

import (
	"context"
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPrinting  JobStatus = "printing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusPrinting, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type JobType string

const (
	JobTypeReceipt JobType = "receipt"
	JobTypeReport  JobType = "report"
	JobTypeLabel   JobType = "label"
)

// PrintJob is one print request as recorded in the job store. Payload is
// kept raw and decoded by the renderer for Type.
type PrintJob struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Status    JobStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	PrintedAt *time.Time      `json:"printed_at,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

type QueueStats struct {
	Pending   int `json:"pending"`
	Printing  int `json:"printing"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Add records count jobs in status.
func (s *QueueStats) Add(status JobStatus, count int) {
	s.Total += count
	switch status {
	case JobStatusPending:
		s.Pending += count
	case JobStatusPrinting:
		s.Printing += count
	case JobStatusCompleted:
		s.Completed += count
	case JobStatusFailed:
		s.Failed += count
	}
}

// JobStore is the worker's view of the job store. ClaimJob must be a single
// conditional update from pending to printing and report whether a row
// changed. CompleteJob and FailJob only touch jobs that are printing.
type JobStore interface {
	ListPending(ctx context.Context, limit int) ([]*PrintJob, error)
	ClaimJob(ctx context.Context, id string) (bool, error)
	CompleteJob(ctx context.Context, id string, printedAt time.Time) error
	FailJob(ctx context.Context, id string, message string) error
}

// JobReader is the read side used by the admin API.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*PrintJob, error)
	ListJobs(ctx context.Context, status JobStatus, limit, offset int) ([]*PrintJob, error)
	CountByStatus(ctx context.Context) (*QueueStats, error)
}

type DocumentRenderer interface {
	Render(docType string, payload json.RawMessage) (string, error)
}

// Transport hands a rendered document to the printer and returns the
// device or spooler status message.
type Transport interface {
	Deliver(ctx context.Context, text string) (string, error)
}

// Outcome describes a job that reached a terminal status.
type Outcome struct {
	Job        *PrintJob
	Document   string
	Message    string
	Err        error
	Duration   time.Duration
	FinishedAt time.Time
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// OutcomeSink is told about every job whose terminal status was recorded.
// Implementations must not block the worker for long; slow delivery belongs
// on their own goroutines.
type OutcomeSink interface {
	JobFinished(ctx context.Context, o Outcome)
}

// CycleObserver receives poll loop bookkeeping.
type CycleObserver interface {
	CycleStarted()
	CycleSkipped()
	StoreError()
}
