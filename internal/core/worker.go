package core

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// CycleResult summarises one poll cycle.
type CycleResult struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Claimed   int           `json:"claimed"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Error     string        `json:"error,omitempty"`
}

type WorkerOptions struct {
	PollInterval time.Duration
	BatchSize    int
	Observer     CycleObserver
	Logger       *slog.Logger
}

// Worker drives the poll loop: one immediate cycle, then one per tick. At
// most one cycle runs at a time, whether it was started by the ticker or by
// TryPoll.
type Worker struct {
	claimer   *Claimer
	runner    *Runner
	interval  time.Duration
	batchSize int
	observer  CycleObserver
	logger    *slog.Logger

	inFlight atomic.Bool
	last     atomic.Pointer[CycleResult]
}

func NewWorker(claimer *Claimer, runner *Runner, opts WorkerOptions) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Worker{
		claimer:   claimer,
		runner:    runner,
		interval:  opts.PollInterval,
		batchSize: opts.BatchSize,
		observer:  opts.Observer,
		logger:    opts.Logger,
	}
}

// Run polls until ctx is cancelled. It does not wait for jobs to drain.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"poll_interval", w.interval.String(),
		"batch_size", w.batchSize,
	)

	w.TryPoll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
			w.TryPoll(ctx)
		}
	}
}

// TryPoll runs one cycle unless another is in flight, in which case it
// returns false without touching the store.
func (w *Worker) TryPoll(ctx context.Context) (CycleResult, bool) {
	if !w.inFlight.CompareAndSwap(false, true) {
		if w.observer != nil {
			w.observer.CycleSkipped()
		}
		w.logger.Debug("poll skipped, previous cycle still running")
		return CycleResult{}, false
	}
	defer w.inFlight.Store(false)

	res := w.cycle(ctx)
	w.last.Store(&res)
	return res, true
}

func (w *Worker) Busy() bool {
	return w.inFlight.Load()
}

// LastCycle returns the most recent finished cycle, or nil before the first.
func (w *Worker) LastCycle() *CycleResult {
	return w.last.Load()
}

func (w *Worker) cycle(ctx context.Context) CycleResult {
	res := CycleResult{StartedAt: time.Now()}
	if w.observer != nil {
		w.observer.CycleStarted()
	}

	jobs, err := w.claimer.ClaimBatch(ctx, w.batchSize)
	if err != nil {
		res.Error = err.Error()
		if w.observer != nil && errors.Is(err, ErrStoreUnavailable) {
			w.observer.StoreError()
		}
		w.logger.Error("claim failed",
			"error", err,
			"kind", KindOf(err),
			"claimed", len(jobs),
		)
	}
	res.Claimed = len(jobs)

	for _, out := range w.runner.ProcessBatch(ctx, jobs) {
		switch out.Job.Status {
		case JobStatusCompleted:
			res.Completed++
		case JobStatusFailed:
			res.Failed++
		}
	}

	res.Duration = time.Since(res.StartedAt)
	if res.Claimed > 0 {
		w.logger.Info("poll cycle finished",
			"claimed", res.Claimed,
			"completed", res.Completed,
			"failed", res.Failed,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}
