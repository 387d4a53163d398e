package stages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreprint/spoold/brokers/memory"
	"github.com/coreprint/spoold/job"
	"github.com/coreprint/spoold/spool"
	memstats "github.com/coreprint/spoold/statistics/memory"
)

// Mock implementations and fixtures for stage tests

const testInterval = 5 * time.Millisecond

// mockLedger implements the Ledger interface for testing
type mockLedger struct {
	mu         sync.Mutex
	debitError error
	debits     []debit
}

type debit struct {
	User      string
	Amount    int
	Reference string
}

func (m *mockLedger) Connect(ctx context.Context) error { return nil }
func (m *mockLedger) Close() error                      { return nil }
func (m *mockLedger) Health() error                     { return nil }

func (m *mockLedger) Debit(ctx context.Context, user string, amount int, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.debitError != nil {
		return m.debitError
	}

	m.debits = append(m.debits, debit{User: user, Amount: amount, Reference: reference})
	return nil
}

func (m *mockLedger) Debits() []debit {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]debit, len(m.debits))
	copy(out, m.debits)
	return out
}

// mockRegistry implements the PrinterRegistry interface over a map
type mockRegistry map[string]string

func (m mockRegistry) ResolvePrinter(name string) (string, bool) {
	addr, ok := m[name]
	return addr, ok
}

// testSetup bundles the real components the stage loops run against
type testSetup struct {
	Broker *memory.MemoryBroker
	Store  *spool.Store
	Stats  *memstats.MemoryStatistics
	Ledger *mockLedger
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()

	broker := memory.NewBroker(memory.DefaultOptions())
	require.NoError(t, broker.Connect(context.Background()))

	store, err := spool.Open(t.TempDir())
	require.NoError(t, err)

	return &testSetup{
		Broker: broker,
		Store:  store,
		Stats:  memstats.NewStatistics(),
		Ledger: &mockLedger{},
	}
}

// spoolJob persists a job and enqueues its identifier on the given queue
func (s *testSetup) spoolJob(t *testing.T, j *job.Job, queue string) {
	t.Helper()

	require.NoError(t, s.Store.Put(j))
	require.NoError(t, s.Broker.Enqueue(context.Background(), queue, j.ID()))
}

// runStage starts the stage loop and stops it at test cleanup
func runStage(t *testing.T, stage interface {
	Run(ctx context.Context) error
}) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- stage.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("stage did not stop")
		}
	})
}

func duplexJob(name string) *job.Job {
	return &job.Job{
		Name:          name,
		OriginUser:    "alice",
		OriginPrinter: "p1",
		DestPrinter:   "lobby",
		Postscript:    "%%Page: 1\n/Duplex true\n%%Page: 2\n%%Page: 3\n",
	}
}
