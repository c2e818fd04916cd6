package db

const (
	CreateMigrationsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	ListAppliedMigrations = `SELECT version FROM schema_migrations`

	RecordMigration = `INSERT INTO schema_migrations (version) VALUES (?)`
)

const jobColumns = `id, type, payload, priority, status, created_at, printed_at, error`

const (
	InsertJob = `
		INSERT INTO print_jobs (id, type, payload, priority, status, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
	`

	GetJobByID = `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = ?`

	ListPendingJobs = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC
		LIMIT ?
	`

	ListJobs = `
		SELECT ` + jobColumns + `
		FROM print_jobs ORDER BY created_at DESC LIMIT ? OFFSET ?
	`

	ListJobsByStatus = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`

	ClaimJob = `UPDATE print_jobs SET status = 'printing' WHERE id = ? AND status = 'pending'`

	CompleteJob = `
		UPDATE print_jobs SET status = 'completed', printed_at = ?, error = NULL
		WHERE id = ? AND status = 'printing'
	`

	FailJob = `
		UPDATE print_jobs SET status = 'failed', error = ?, printed_at = NULL
		WHERE id = ? AND status = 'printing'
	`

	CountJobsByStatus = `SELECT status, COUNT(*) FROM print_jobs GROUP BY status`
)
