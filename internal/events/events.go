// Package events broadcasts finished print jobs to message brokers so other
// parts of the POS (the bot relay, dashboards) can react without polling the
// job store.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/printworker/internal/core"
)

type JobEvent struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	PrintedAt  *time.Time `json:"printed_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at"`
	DurationMs int64      `json:"duration_ms"`
}

func NewJobEvent(o core.Outcome) JobEvent {
	ev := JobEvent{
		ID:         uuid.NewString(),
		JobID:      o.Job.ID,
		Type:       string(o.Job.Type),
		Status:     string(o.Job.Status),
		PrintedAt:  o.Job.PrintedAt,
		FinishedAt: o.FinishedAt,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
		ev.ErrorKind = string(core.KindOf(o.Err))
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev JobEvent, body []byte) error
	Close() error
}

// Dispatcher hands every finished job to each publisher in turn. A broker
// that is down costs at most timeout per job.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
}

func NewDispatcher(logger *slog.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		publishers: publishers,
		timeout:    timeout,
		logger:     logger.With("component", "events"),
	}
}

func (d *Dispatcher) Len() int {
	return len(d.publishers)
}

func (d *Dispatcher) JobFinished(ctx context.Context, o core.Outcome) {
	ev := NewJobEvent(o)
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("failed to marshal event", "job_id", ev.JobID, "error", err)
		return
	}

	for _, p := range d.publishers {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		if err := p.Publish(pctx, ev, body); err != nil {
			d.logger.Warn("failed to publish event", "job_id", ev.JobID, "error", err)
		}
		cancel()
	}
}

func (d *Dispatcher) Close() error {
	var first error
	for _, p := range d.publishers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
