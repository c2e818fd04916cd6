// Package archive keeps a copy of every successfully printed document so a
// receipt can be reprinted or audited after the fact.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"time"

	"github.com/orrn/printworker/internal/config"
	"github.com/orrn/printworker/internal/core"
)

var ErrNotArchived = errors.New("document not archived")

var safeID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store is a blob backend addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, doc []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Archiver files rendered documents under archive_YYYY_MM/<job id>.txt, using
// the month the job finished in.
type Archiver struct {
	store  Store
	logger *slog.Logger
}

func NewArchiver(store Store, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, logger: logger.With("component", "archive")}
}

// New builds the archiver described by cfg. An empty backend returns nil.
func New(cfg config.ArchiveConfig, logger *slog.Logger) (*Archiver, error) {
	var store Store
	var err error
	switch cfg.Backend {
	case "":
		return nil, nil
	case "dir":
		store, err = NewDirStore(cfg.Dir)
	case "s3":
		store, err = NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewArchiver(store, logger), nil
}

func Key(jobID string, finished time.Time) (string, error) {
	if !safeID.MatchString(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	return path.Join(finished.UTC().Format("archive_2006_01"), jobID+".txt"), nil
}

// JobFinished archives the document of a completed job. Failed jobs have
// nothing worth keeping.
func (a *Archiver) JobFinished(ctx context.Context, o core.Outcome) {
	if !o.Succeeded() || o.Document == "" {
		return
	}
	finished := o.FinishedAt
	if o.Job.PrintedAt != nil {
		finished = *o.Job.PrintedAt
	}
	key, err := Key(o.Job.ID, finished)
	if err != nil {
		a.logger.Warn("skipping archive", "job_id", o.Job.ID, "error", err)
		return
	}
	if err := a.store.Put(context.WithoutCancel(ctx), key, []byte(o.Document)); err != nil {
		a.logger.Error("failed to archive document", "job_id", o.Job.ID, "key", key, "error", err)
		return
	}
	a.logger.Debug("document archived", "job_id", o.Job.ID, "key", key)
}

// Document returns the archived text for a job that finished at printedAt.
func (a *Archiver) Document(ctx context.Context, jobID string, printedAt time.Time) (string, error) {
	key, err := Key(jobID, printedAt)
	if err != nil {
		return "", err
	}
	doc, err := a.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(doc), nil
}
