package db

import (
	"database/sql"
	"encoding/json"

	"github.com/orrn/printworker/internal/core"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*core.PrintJob, error) {
	var (
		job       core.PrintJob
		payload   string
		printedAt sql.NullTime
		errMsg    sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.Type, &payload, &job.Priority, &job.Status,
		&job.CreatedAt, &printedAt, &errMsg,
	); err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	if printedAt.Valid {
		t := printedAt.Time
		job.PrintedAt = &t
	}
	if errMsg.Valid {
		msg := errMsg.String
		job.Error = &msg
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*core.PrintJob, error) {
	defer rows.Close()

	jobs := []*core.PrintJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
