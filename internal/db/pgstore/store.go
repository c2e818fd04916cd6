// Package pgstore is the PostgreSQL job store, for shops whose POS backend
// keeps print_jobs in Postgres directly.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orrn/printworker/internal/core"
)

var (
	_ core.JobStore  = (*Store)(nil)
	_ core.JobReader = (*Store)(nil)
)

type queries struct {
	createTable   string
	createIndex   string
	insert        string
	getByID       string
	listPending   string
	listAll       string
	listByStatus  string
	claim         string
	complete      string
	fail          string
	countByStatus string
}

func buildQueries(table string) queries {
	t := pgx.Identifier{table}.Sanitize()
	idx := pgx.Identifier{table + "_pending_idx"}.Sanitize()
	cols := `id::text, type, payload, priority, status, created_at, printed_at, error`

	return queries{
		createTable: `
CREATE TABLE IF NOT EXISTS ` + t + ` (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	type text NOT NULL,
	payload jsonb NOT NULL DEFAULT '{}',
	priority integer NOT NULL DEFAULT 0,
	status text NOT NULL DEFAULT 'pending',
	created_at timestamptz NOT NULL DEFAULT now(),
	printed_at timestamptz,
	error text
);`,
		createIndex: `CREATE INDEX IF NOT EXISTS ` + idx + ` ON ` + t + ` (status, priority, created_at);`,
		insert: `
INSERT INTO ` + t + ` (id, type, payload, priority, status, created_at)
VALUES ($1, $2, $3, $4, 'pending', $5);`,
		getByID: `SELECT ` + cols + ` FROM ` + t + ` WHERE id = $1;`,
		listPending: `
SELECT ` + cols + `
FROM ` + t + `
WHERE status = 'pending'
ORDER BY priority ASC, created_at ASC
LIMIT $1;`,
		listAll: `
SELECT ` + cols + `
FROM ` + t + `
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;`,
		listByStatus: `
SELECT ` + cols + `
FROM ` + t + `
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;`,
		claim:         `UPDATE ` + t + ` SET status = 'printing' WHERE id = $1 AND status = 'pending';`,
		complete:      `UPDATE ` + t + ` SET status = 'completed', printed_at = $2, error = NULL WHERE id = $1 AND status = 'printing';`,
		fail:          `UPDATE ` + t + ` SET status = 'failed', error = $2, printed_at = NULL WHERE id = $1 AND status = 'printing';`,
		countByStatus: `SELECT status, count(*) FROM ` + t + ` GROUP BY status;`,
	}
}

type Store struct {
	pool *pgxpool.Pool
	q    queries
}

// NewPool connects to dsn and checks the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = "print_jobs"
	}
	return &Store{pool: pool, q: buildQueries(table)}
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.q.createTable); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, s.q.createIndex); err != nil {
		return fmt.Errorf("failed to create jobs index: %w", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", core.ErrStoreUnavailable, op, err)
}

func scanJob(row pgx.Row) (*core.PrintJob, error) {
	var (
		job       core.PrintJob
		payload   []byte
		printedAt *time.Time
		errText   *string
	)
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&payload,
		&job.Priority,
		&job.Status,
		&job.CreatedAt,
		&printedAt, // NULL => nil
		&errText,   // NULL => nil
	); err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	job.PrintedAt = printedAt
	job.Error = errText
	return &job, nil
}

func (s *Store) collect(ctx context.Context, op, query string, args ...any) ([]*core.PrintJob, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	jobs := []*core.PrintJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return jobs, nil
}

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
	if _, err := s.pool.Exec(ctx, s.q.insert, job.ID, string(job.Type), payload, job.Priority, job.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]*core.PrintJob, error) {
	return s.collect(ctx, "list pending jobs", s.q.listPending, limit)
}

func (s *Store) ClaimJob(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, s.q.claim, id)
	if err != nil {
		return false, unavailable("claim job", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string, printedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, s.q.complete, id, printedAt)
	if err != nil {
		return unavailable("complete job", err)
	}
	return requirePrinting(tag, id)
}

func (s *Store) FailJob(ctx context.Context, id string, message string) error {
	tag, err := s.pool.Exec(ctx, s.q.fail, id, message)
	if err != nil {
		return unavailable("fail job", err)
	}
	return requirePrinting(tag, id)
}

func requirePrinting(tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not printing", core.ErrClaimConflict, id)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*core.PrintJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrJobNotFound
	}
	job, err := scanJob(s.pool.QueryRow(ctx, s.q.getByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, unavailable("get job", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, status core.JobStatus, limit, offset int) ([]*core.PrintJob, error) {
	if status != "" {
		return s.collect(ctx, "list jobs", s.q.listByStatus, string(status), limit, offset)
	}
	return s.collect(ctx, "list jobs", s.q.listAll, limit, offset)
}

func (s *Store) CountByStatus(ctx context.Context) (*core.QueueStats, error) {
	rows, err := s.pool.Query(ctx, s.q.countByStatus)
	if err != nil {
		return nil, unavailable("count jobs", err)
	}
	defer rows.Close()

	stats := &core.QueueStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, unavailable("scan job counts", err)
		}
		stats.Add(core.JobStatus(status), int(count))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("count jobs", err)
	}
	return stats, nil
}
