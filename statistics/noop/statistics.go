// Package noop provides a statistics backend that records nothing.
package noop

import (
	"context"

	"github.com/coreprint/spoold/job"
)

// NoOpStatistics implements the Statistics interface with no-op operations
type NoOpStatistics struct{}

// NewStatistics creates a new no-op statistics backend
func NewStatistics() *NoOpStatistics {
	return &NoOpStatistics{}
}

// Connect establishes connection (no-op)
func (n *NoOpStatistics) Connect(ctx context.Context) error {
	return nil
}

// Close closes the connection (no-op)
func (n *NoOpStatistics) Close() error {
	return nil
}

// Health checks connection health
func (n *NoOpStatistics) Health() error {
	return nil
}

// Type returns the statistics backend type
func (n *NoOpStatistics) Type() string {
	return "noop"
}

// RecordIngested records a spooled submission (no-op)
func (n *NoOpStatistics) RecordIngested(ctx context.Context, j *job.Job) error {
	return nil
}

// RecordRejected records a rejected submission (no-op)
func (n *NoOpStatistics) RecordRejected(ctx context.Context, remoteAddr string, err error) error {
	return nil
}

// RecordBilled records a billed job (no-op)
func (n *NoOpStatistics) RecordBilled(ctx context.Context, id, user string, cost int) error {
	return nil
}

// RecordDispatched records a dispatched job (no-op)
func (n *NoOpStatistics) RecordDispatched(ctx context.Context, id, printer string, bytes int) error {
	return nil
}

// RecordDeadLettered records a dead-lettered job (no-op)
func (n *NoOpStatistics) RecordDeadLettered(ctx context.Context, id, stage string, err error) error {
	return nil
}
