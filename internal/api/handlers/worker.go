package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printworker/internal/core"
)

type Poller interface {
	TryPoll(ctx context.Context) (core.CycleResult, bool)
	Busy() bool
	LastCycle() *core.CycleResult
}

type MetricsSource interface {
	GetSnapshot() map[string]int64
}

type StatsResponse struct {
	Queue     *core.QueueStats  `json:"queue"`
	Busy      bool              `json:"busy"`
	LastCycle *core.CycleResult `json:"last_cycle,omitempty"`
	Metrics   map[string]int64  `json:"metrics,omitempty"`
}

type WorkerHandler struct {
	worker  Poller
	reader  core.JobReader
	metrics MetricsSource
}

func NewWorkerHandler(worker Poller, reader core.JobReader, metrics MetricsSource) *WorkerHandler {
	return &WorkerHandler{worker: worker, reader: reader, metrics: metrics}
}

func (h *WorkerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "printworker",
		"busy":    h.worker.Busy(),
	})
}

func (h *WorkerHandler) Stats(c *gin.Context) {
	stats, err := h.reader.CountByStatus(c.Request.Context())
	if err != nil {
		storeFailure(c, err, "count jobs")
		return
	}

	resp := StatsResponse{
		Queue:     stats,
		Busy:      h.worker.Busy(),
		LastCycle: h.worker.LastCycle(),
	}
	if h.metrics != nil {
		resp.Metrics = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// Poll runs a cycle now. A cycle already in flight wins and the request
// gets 409. The cycle outlives the request if the client goes away.
func (h *WorkerHandler) Poll(c *gin.Context) {
	res, ok := h.worker.TryPoll(context.WithoutCancel(c.Request.Context()))
	if !ok {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "poll cycle already running"})
		return
	}
	c.JSON(http.StatusOK, res)
}
