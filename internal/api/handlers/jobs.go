package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printworker/internal/archive"
	"github.com/orrn/printworker/internal/core"
)

type ListJobsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// DocumentSource returns the archived text of a printed job.
type DocumentSource interface {
	Document(ctx context.Context, jobID string, printedAt time.Time) (string, error)
}

type JobHandler struct {
	reader    core.JobReader
	documents DocumentSource
}

// NewJobHandler serves jobs from reader. documents may be nil when no
// archive is configured.
func NewJobHandler(reader core.JobReader, documents DocumentSource) *JobHandler {
	return &JobHandler{reader: reader, documents: documents}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query", Message: err.Error()})
		return
	}

	status := core.JobStatus(query.Status)
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status " + query.Status})
		return
	}
	if query.Limit == 0 {
		query.Limit = 50
	}

	jobs, err := h.reader.ListJobs(c.Request.Context(), status, query.Limit, query.Offset)
	if err != nil {
		storeFailure(c, err, "list jobs")
		return
	}
	if jobs == nil {
		jobs = []*core.PrintJob{}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  query.Limit,
		"offset": query.Offset,
		"count":  len(jobs),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.reader.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetDocument returns the text that was sent to the printer for a
// completed job.
func (h *JobHandler) GetDocument(c *gin.Context) {
	if h.documents == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document archive disabled"})
		return
	}

	job, err := h.reader.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, err, "get job")
		return
	}
	if job.Status != core.JobStatusCompleted || job.PrintedAt == nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "job has not been printed", Message: string(job.Status)})
		return
	}

	doc, err := h.documents.Document(c.Request.Context(), job.ID, *job.PrintedAt)
	if err != nil {
		if errors.Is(err, archive.ErrNotArchived) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not archived"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read archive", Message: err.Error()})
		return
	}

	c.String(http.StatusOK, doc)
}
