package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coreprint/spoold/job"
)

// mockBroker is an in-memory broker for engine tests.
type mockBroker struct {
	mu        sync.Mutex
	queues    map[string][]string
	connected bool

	connectError error
	healthError  error
	closed       bool
}

func newMockBroker() *mockBroker {
	return &mockBroker{queues: make(map[string][]string)}
}

func (m *mockBroker) Enqueue(ctx context.Context, queue, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[queue] = append(m.queues[queue], id)
	return nil
}

func (m *mockBroker) Dequeue(ctx context.Context, queue string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.queues[queue]
	if len(pending) == 0 {
		return "", false, nil
	}
	id := pending[0]
	m.queues[queue] = pending[1:]
	return id, true, nil
}

func (m *mockBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queues[name])), nil
}

func (m *mockBroker) Connect(ctx context.Context) error {
	if m.connectError != nil {
		return m.connectError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *mockBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockBroker) Health() error { return m.healthError }
func (m *mockBroker) Type() string  { return "mock" }

// mockLedger records debits and reports injected health state.
type mockLedger struct {
	mu     sync.Mutex
	debits []string

	healthError error
	closed      bool
}

func (m *mockLedger) Debit(ctx context.Context, user string, amount int, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debits = append(m.debits, reference)
	return nil
}

func (m *mockLedger) Connect(ctx context.Context) error { return nil }

func (m *mockLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockLedger) Health() error { return m.healthError }

// mockStatistics discards events and tracks lifecycle calls.
type mockStatistics struct {
	mu        sync.Mutex
	connected bool
	closed    bool
}

func (m *mockStatistics) RecordIngested(ctx context.Context, j *job.Job) error { return nil }
func (m *mockStatistics) RecordRejected(ctx context.Context, remoteAddr string, err error) error {
	return nil
}
func (m *mockStatistics) RecordBilled(ctx context.Context, id, user string, cost int) error {
	return nil
}
func (m *mockStatistics) RecordDispatched(ctx context.Context, id, printer string, bytes int) error {
	return nil
}
func (m *mockStatistics) RecordDeadLettered(ctx context.Context, id, stage string, err error) error {
	return nil
}

func (m *mockStatistics) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *mockStatistics) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStatistics) Health() error { return nil }
func (m *mockStatistics) Type() string  { return "mock" }

// mockStage counts runs. failures > 0 makes the first runs return failError
// so restart supervision can be observed.
type mockStage struct {
	name     string
	runs     atomic.Int64
	failures int64
	failErr  error
}

func (m *mockStage) Name() string { return m.name }

func (m *mockStage) Run(ctx context.Context) error {
	run := m.runs.Add(1)
	if run <= m.failures {
		return m.failErr
	}
	<-ctx.Done()
	return nil
}

// mockIngestor signals ready immediately and blocks until cancellation.
type mockIngestor struct {
	ready     chan struct{}
	served    atomic.Bool
	readyErr  bool // when set, Serve never closes ready
	serveDone chan struct{}
}

func newMockIngestor() *mockIngestor {
	return &mockIngestor{
		ready:     make(chan struct{}),
		serveDone: make(chan struct{}),
	}
}

func (m *mockIngestor) Serve(ctx context.Context) error {
	m.served.Store(true)
	if !m.readyErr {
		close(m.ready)
	}
	<-ctx.Done()
	close(m.serveDone)
	return nil
}

func (m *mockIngestor) Ready() <-chan struct{} { return m.ready }
func (m *mockIngestor) Addr() string           { return "127.0.0.1:0" }
