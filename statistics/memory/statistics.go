// Package memory provides an in-process statistics backend with queryable
// counters. Used for single-process deployments and by the pipeline tests.
package memory

import (
	"context"
	"sync"

	"github.com/coreprint/spoold/job"
)

// DeadLetter describes one dead-lettered job.
type DeadLetter struct {
	ID     string
	Stage  string
	Reason string
}

// Charge describes one billed job.
type Charge struct {
	ID   string
	User string
	Cost int
}

// MemoryStatistics implements the Statistics interface with in-process
// counters.
type MemoryStatistics struct {
	mu           sync.RWMutex
	ingested     []string
	rejected     int64
	billed       []Charge
	dispatched   map[string]int // job id -> bytes transmitted
	deadLettered []DeadLetter
}

// NewStatistics creates a new in-memory statistics backend
func NewStatistics() *MemoryStatistics {
	return &MemoryStatistics{
		dispatched: make(map[string]int),
	}
}

// Connect establishes connection (no-op for memory statistics)
func (m *MemoryStatistics) Connect(ctx context.Context) error {
	return nil
}

// Close closes the connection (no-op for memory statistics)
func (m *MemoryStatistics) Close() error {
	return nil
}

// Health checks connection health
func (m *MemoryStatistics) Health() error {
	return nil
}

// Type returns the statistics backend type
func (m *MemoryStatistics) Type() string {
	return "memory"
}

// RecordIngested records a spooled submission
func (m *MemoryStatistics) RecordIngested(ctx context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ingested = append(m.ingested, j.ID())
	return nil
}

// RecordRejected records a rejected submission
func (m *MemoryStatistics) RecordRejected(ctx context.Context, remoteAddr string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejected++
	return nil
}

// RecordBilled records a billed job
func (m *MemoryStatistics) RecordBilled(ctx context.Context, id, user string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.billed = append(m.billed, Charge{ID: id, User: user, Cost: cost})
	return nil
}

// RecordDispatched records a dispatched job
func (m *MemoryStatistics) RecordDispatched(ctx context.Context, id, printer string, bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dispatched[id] = bytes
	return nil
}

// RecordDeadLettered records a dead-lettered job
func (m *MemoryStatistics) RecordDeadLettered(ctx context.Context, id, stage string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.deadLettered = append(m.deadLettered, DeadLetter{ID: id, Stage: stage, Reason: reason})
	return nil
}

// Ingested returns the identifiers of spooled submissions in order
func (m *MemoryStatistics) Ingested() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.ingested))
	copy(out, m.ingested)
	return out
}

// Rejected returns the number of rejected submissions
func (m *MemoryStatistics) Rejected() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rejected
}

// Billed returns the charges recorded so far in order
func (m *MemoryStatistics) Billed() []Charge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Charge, len(m.billed))
	copy(out, m.billed)
	return out
}

// Dispatched returns bytes transmitted per dispatched job id
func (m *MemoryStatistics) Dispatched() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.dispatched))
	for k, v := range m.dispatched {
		out[k] = v
	}
	return out
}

// DeadLettered returns the dead-letter records in order
func (m *MemoryStatistics) DeadLettered() []DeadLetter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DeadLetter, len(m.deadLettered))
	copy(out, m.deadLettered)
	return out
}
