package core

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner prints claimed jobs one after another and records how each ended.
type Runner struct {
	renderer  DocumentRenderer
	transport Transport
	store     JobStore
	sinks     []OutcomeSink
	logger    *slog.Logger
	now       func() time.Time
}

func NewRunner(renderer DocumentRenderer, transport Transport, store JobStore, logger *slog.Logger, sinks ...OutcomeSink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		renderer:  renderer,
		transport: transport,
		store:     store,
		sinks:     sinks,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessBatch runs jobs in order. A failed job never stops the batch; only
// cancellation of ctx does, and the jobs not started then stay printing.
func (r *Runner) ProcessBatch(ctx context.Context, jobs []*PrintJob) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for i, job := range jobs {
		if ctx.Err() != nil {
			r.logger.Warn("stopping batch, claimed jobs left printing",
				"remaining", len(jobs)-i)
			break
		}
		outcomes = append(outcomes, r.Process(ctx, job))
	}
	return outcomes
}

// Process renders and delivers one claimed job and writes its terminal
// status. Sinks are notified only when that write succeeded.
func (r *Runner) Process(ctx context.Context, job *PrintJob) Outcome {
	start := r.now()
	out := Outcome{Job: job}

	doc, err := r.renderer.Render(string(job.Type), job.Payload)
	if err != nil {
		out.Err = &RenderError{Type: job.Type, Err: err}
	} else {
		out.Document = doc
		out.Message, out.Err = r.deliver(ctx, doc)
	}

	out.FinishedAt = r.now()
	out.Duration = out.FinishedAt.Sub(start)

	if err := r.record(ctx, job, out); err != nil {
		r.logger.Error("failed to record job status",
			"job_id", job.ID,
			"error", err,
			"kind", KindOf(err),
		)
		return out
	}

	if out.Err != nil {
		r.logger.Warn("job failed",
			"job_id", job.ID,
			"type", job.Type,
			"status", job.Status,
			"kind", KindOf(out.Err),
			"error", out.Err,
			"duration_ms", out.Duration.Milliseconds(),
		)
	} else {
		r.logger.Info("job printed",
			"job_id", job.ID,
			"type", job.Type,
			"status", job.Status,
			"spooler", out.Message,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}

	for _, sink := range r.sinks {
		sink.JobFinished(ctx, out)
	}

	return out
}

func (r *Runner) deliver(ctx context.Context, doc string) (string, error) {
	msg, err := r.transport.Deliver(ctx, doc)
	if err == nil {
		return msg, nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return "", err
	}
	return "", &TransportError{Diagnostic: err.Error(), Err: err}
}

func (r *Runner) record(ctx context.Context, job *PrintJob, out Outcome) error {
	if out.Err != nil {
		msg := out.Err.Error()
		if err := r.store.FailJob(ctx, job.ID, msg); err != nil {
			return storeError(err)
		}
		job.Status = JobStatusFailed
		job.Error = &msg
		return nil
	}

	printedAt := out.FinishedAt
	if err := r.store.CompleteJob(ctx, job.ID, printedAt); err != nil {
		return storeError(err)
	}
	job.Status = JobStatusCompleted
	job.PrintedAt = &printedAt
	return nil
}
