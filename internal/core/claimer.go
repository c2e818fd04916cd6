package core

import (
	"context"
	"log/slog"
	"sort"
)

type Claimer struct {
	store  JobStore
	logger *slog.Logger
}

func NewClaimer(store JobStore, logger *slog.Logger) *Claimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Claimer{store: store, logger: logger}
}

func jobLess(a, b *PrintJob) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// ClaimBatch selects up to maxSize pending jobs ordered by priority and
// creation time and moves each one to printing. Jobs another worker claimed
// first are left out. If the store fails partway, the jobs claimed so far are
// returned together with an ErrStoreUnavailable error so the caller can still
// finish them.
func (c *Claimer) ClaimBatch(ctx context.Context, maxSize int) ([]*PrintJob, error) {
	if maxSize < 1 {
		return nil, nil
	}

	pending, err := c.store.ListPending(ctx, maxSize)
	if err != nil {
		return nil, storeError(err)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return jobLess(pending[i], pending[j])
	})
	if len(pending) > maxSize {
		pending = pending[:maxSize]
	}

	claimed := make([]*PrintJob, 0, len(pending))
	for _, job := range pending {
		if ctx.Err() != nil {
			break
		}

		ok, err := c.store.ClaimJob(ctx, job.ID)
		if err != nil {
			return claimed, storeError(err)
		}
		if !ok {
			c.logger.Debug("job claimed elsewhere", "job_id", job.ID, "kind", KindClaimConflict)
			continue
		}

		job.Status = JobStatusPrinting
		claimed = append(claimed, job)
	}

	return claimed, nil
}
