package metrics

import (
	"context"
	"sync"

	"github.com/orrn/printworker/internal/core"
)

// Metrics counts poll cycles and job outcomes. It is both a
// core.CycleObserver and a core.OutcomeSink.
type Metrics struct {
	mu sync.RWMutex

	cycles         int64
	skippedCycles  int64
	storeErrors    int64
	completedJobs  int64
	failedJobs     int64
	failuresByKind map[core.ErrorKind]int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{failuresByKind: make(map[core.ErrorKind]int64)}
}

func (m *Metrics) CycleStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
}

func (m *Metrics) CycleSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skippedCycles++
}

func (m *Metrics) StoreError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors++
}

func (m *Metrics) JobFinished(_ context.Context, o core.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Succeeded() {
		m.completedJobs++
		return
	}
	m.failedJobs++
	kind := core.KindOf(o.Err)
	if kind == "" {
		kind = "other"
	}
	m.failuresByKind[kind]++
}

// GetSnapshot returns a snapshot of all metrics. Failures are also broken
// down as failed_<kind>.
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := map[string]int64{
		"cycles":         m.cycles,
		"skipped_cycles": m.skippedCycles,
		"store_errors":   m.storeErrors,
		"completed_jobs": m.completedJobs,
		"failed_jobs":    m.failedJobs,
	}
	for kind, n := range m.failuresByKind {
		snapshot["failed_"+string(kind)] = n
	}
	return snapshot
}
