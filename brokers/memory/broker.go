// Package memory implements the Broker interface with bounded in-process
// channels, one per queue. This is the default backend for a single-process
// pipeline.
package memory

import (
	"context"
	"sync"

	"github.com/coreprint/spoold/errors"
)

// MemoryBroker implements the Broker interface using in-memory channels.
// Queues are bounded: Enqueue blocks when a queue is full, which is the
// pipeline's backpressure policy.
type MemoryBroker struct {
	mu        sync.RWMutex
	queues    map[string]chan string
	queueSize int
	connected bool
}

// NewBroker creates a new in-memory broker
func NewBroker(options Options) *MemoryBroker {
	size := options.QueueSize
	if size < 1 {
		size = DefaultOptions().QueueSize
	}

	return &MemoryBroker{
		queues:    make(map[string]chan string),
		queueSize: size,
	}
}

// Connect establishes connection (no-op for memory broker)
func (m *MemoryBroker) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = true
	return nil
}

// Close closes the broker and all queue channels
func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.queues {
		close(ch)
	}

	m.queues = make(map[string]chan string)
	m.connected = false
	return nil
}

// Health checks the broker health
func (m *MemoryBroker) Health() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the broker type
func (m *MemoryBroker) Type() string {
	return "memory"
}

// Enqueue appends a job identifier to the queue, blocking while the queue
// is full.
func (m *MemoryBroker) Enqueue(ctx context.Context, queue, id string) error {
	ch, err := m.queueChan(queue)
	if err != nil {
		return err
	}

	select {
	case ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest identifier from the queue without blocking.
func (m *MemoryBroker) Dequeue(ctx context.Context, queue string) (string, bool, error) {
	m.mu.RLock()
	ch, exists := m.queues[queue]
	m.mu.RUnlock()

	if !exists {
		return "", false, nil
	}

	select {
	case id, ok := <-ch:
		if !ok {
			return "", false, errors.NewBrokerError("dequeue", queue, errors.ErrQueueClosed)
		}
		return id, true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	default:
		return "", false, nil
	}
}

// QueueLength returns the number of identifiers waiting in a queue
func (m *MemoryBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, exists := m.queues[name]
	if !exists {
		return 0, nil
	}

	return int64(len(ch)), nil
}

func (m *MemoryBroker) queueChan(queue string) (chan string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, errors.NewBrokerError("enqueue", queue, errors.ErrNotConnected)
	}

	ch, exists := m.queues[queue]
	if !exists {
		// Create queue on demand
		ch = make(chan string, m.queueSize)
		m.queues[queue] = ch
	}

	return ch, nil
}
