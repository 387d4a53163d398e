package core

import (
	"context"
	"time"

	"github.com/coreprint/spoold/job"
)

// Queue names for the pipeline hand-off channels. An identifier enqueued on
// one of these is always backed by a spool entry: every stage enqueues only
// after its side effect has completed.
const (
	QueueRelease  = "release"
	QueueBilling  = "billing"
	QueueDispatch = "dispatch"
)

// Broker interface defines what the pipeline needs from a hand-off queue
// backend. Queues are FIFO and carry job identifiers only.
type Broker interface {
	// Enqueue appends an identifier to the named queue. When the queue is
	// bounded and full, Enqueue blocks until space frees or ctx is done.
	Enqueue(ctx context.Context, queue, id string) error

	// Dequeue removes the oldest identifier from the named queue. A false
	// second return means the queue was empty; stages poll at an interval.
	Dequeue(ctx context.Context, queue string) (string, bool, error)

	// Queue introspection
	QueueLength(ctx context.Context, name string) (int64, error)

	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Health() error
	Type() string
}

// Ledger interface defines what billing needs from the ledger collaborator.
type Ledger interface {
	// Debit charges the user's account. The reference ties the charge to a
	// job for audit.
	Debit(ctx context.Context, user string, amount int, reference string) error

	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Health() error
}

// Statistics interface defines what the pipeline needs from a statistics
// backend.
type Statistics interface {
	// Pipeline events
	RecordIngested(ctx context.Context, j *job.Job) error
	RecordRejected(ctx context.Context, remoteAddr string, err error) error
	RecordBilled(ctx context.Context, id, user string, cost int) error
	RecordDispatched(ctx context.Context, id, printer string, bytes int) error
	RecordDeadLettered(ctx context.Context, id, stage string, err error) error

	// Health and connection
	Connect(ctx context.Context) error
	Close() error
	Health() error
	Type() string
}

// Stage is a single pipeline worker: a sequential loop over its input
// queue. Run returns only on ctx cancellation (nil) or a backend failure
// (non-nil); per-job failures are handled inside the loop so one bad
// document cannot kill the stage.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Ingestor is the submission listener. Serve blocks until ctx is done;
// Ready is closed once the listener is bound, after which Addr reports the
// bound address.
type Ingestor interface {
	Serve(ctx context.Context) error
	Ready() <-chan struct{}
	Addr() string
}

// PrinterRegistry resolves a destination printer identifier to its network
// address.
type PrinterRegistry interface {
	ResolvePrinter(name string) (string, bool)
}

// HealthStatus represents the health of the engine
type HealthStatus struct {
	Healthy      bool
	BrokerHealth error
	StatsHealth  error
	LedgerHealth error
	QueuedJobs   map[string]int64
	SpooledJobs  int
	LastCheck    time.Time
}
