package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/printworker/internal/core"
)

var (
	_ core.JobStore  = (*Store)(nil)
	_ core.JobReader = (*Store)(nil)
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", core.ErrStoreUnavailable, op, err)
}

// InsertJob enqueues a pending job with a fresh id.
func (s *Store) InsertJob(ctx context.Context, jobType core.JobType, payload json.RawMessage, priority int) (*core.PrintJob, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	job := &core.PrintJob{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   payload,
		Priority:  priority,
		Status:    core.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, InsertJob,
		job.ID, job.Type, string(job.Payload), job.Priority, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]*core.PrintJob, error) {
	rows, err := s.db.QueryContext(ctx, ListPendingJobs, limit)
	if err != nil {
		return nil, unavailable("list pending jobs", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, unavailable("scan pending jobs", err)
	}
	return jobs, nil
}

func (s *Store) ClaimJob(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, ClaimJob, id)
	if err != nil {
		return false, unavailable("claim job", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("get affected rows", err)
	}
	return affected == 1, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string, printedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, CompleteJob, printedAt.UTC(), id)
	if err != nil {
		return unavailable("complete job", err)
	}
	return requirePrinting(result, id)
}

func (s *Store) FailJob(ctx context.Context, id string, message string) error {
	result, err := s.db.ExecContext(ctx, FailJob, message, id)
	if err != nil {
		return unavailable("fail job", err)
	}
	return requirePrinting(result, id)
}

func requirePrinting(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("get affected rows", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s is not printing", core.ErrClaimConflict, id)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*core.PrintJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, GetJobByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, unavailable("get job", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, status core.JobStatus, limit, offset int) ([]*core.PrintJob, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.db.QueryContext(ctx, ListJobsByStatus, status, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, ListJobs, limit, offset)
	}
	if err != nil {
		return nil, unavailable("list jobs", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, unavailable("scan jobs", err)
	}
	return jobs, nil
}

func (s *Store) CountByStatus(ctx context.Context) (*core.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, unavailable("count jobs", err)
	}
	defer rows.Close()

	stats := &core.QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, unavailable("scan job counts", err)
		}
		stats.Add(core.JobStatus(status), count)
	}
	return stats, rows.Err()
}
