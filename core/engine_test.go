package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreprint/spoold/spool"
)

func testEngine(t *testing.T, stages []Stage, options ...EngineOption) (*Engine, *mockBroker, *mockLedger, *mockStatistics, *mockIngestor) {
	t.Helper()

	store, err := spool.Open(t.TempDir())
	require.NoError(t, err)

	broker := newMockBroker()
	ledger := &mockLedger{}
	stats := &mockStatistics{}
	ingestor := newMockIngestor()

	engine := NewEngine(broker, store, ledger, stats, stages, ingestor, options...)
	return engine, broker, ledger, stats, ingestor
}

func TestEngine_StartSequencing(t *testing.T) {
	t.Parallel()

	stage := &mockStage{name: "release"}
	engine, broker, _, stats, ingestor := testEngine(t, []Stage{stage})

	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	// Start returns only after the listener is bound.
	select {
	case <-ingestor.Ready():
	default:
		t.Fatal("engine started before ingestor was ready")
	}

	assert.True(t, broker.connected)
	assert.True(t, stats.connected)
	assert.True(t, ingestor.served.Load())

	require.Eventually(t, func() bool {
		return stage.runs.Load() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_StartFailsWhenBrokerUnreachable(t *testing.T) {
	t.Parallel()

	broker := newMockBroker()
	broker.connectError = errors.New("connection refused")

	store, err := spool.Open(t.TempDir())
	require.NoError(t, err)

	engine := NewEngine(broker, store, &mockLedger{}, &mockStatistics{}, nil, newMockIngestor())

	err = engine.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect broker")
}

func TestEngine_RestartsFailedStage(t *testing.T) {
	t.Parallel()

	stage := &mockStage{
		name:     "billing",
		failures: 2,
		failErr:  errors.New("backend hiccup"),
	}
	engine, _, _, _, _ := testEngine(t, []Stage{stage},
		WithRestartDelay(5*time.Millisecond))

	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	// Two failing runs, then the third sticks.
	require.Eventually(t, func() bool {
		return stage.runs.Load() == 3
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_StopIsGraceful(t *testing.T) {
	t.Parallel()

	stage := &mockStage{name: "dispatch"}
	engine, broker, ledger, stats, ingestor := testEngine(t, []Stage{stage},
		WithShutdownTimeout(2*time.Second))

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Stop())

	select {
	case <-ingestor.serveDone:
	default:
		t.Fatal("ingestor still serving after Stop")
	}

	assert.True(t, broker.closed)
	assert.True(t, ledger.closed)
	assert.True(t, stats.closed)
}

func TestEngine_StartCancelledBeforeReady(t *testing.T) {
	t.Parallel()

	ingestor := newMockIngestor()
	ingestor.readyErr = true

	store, err := spool.Open(t.TempDir())
	require.NoError(t, err)

	engine := NewEngine(newMockBroker(), store, &mockLedger{}, &mockStatistics{}, nil, ingestor)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = engine.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_NilStatisticsDefaulted(t *testing.T) {
	t.Parallel()

	store, err := spool.Open(t.TempDir())
	require.NoError(t, err)

	engine := NewEngine(newMockBroker(), store, &mockLedger{}, nil, nil, newMockIngestor())

	require.NoError(t, engine.Start(context.Background()))
	assert.True(t, engine.Health().Healthy)
	require.NoError(t, engine.Stop())
}

func TestEngine_Health(t *testing.T) {
	t.Parallel()

	engine, broker, ledger, _, _ := testEngine(t, nil)

	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	require.NoError(t, broker.Enqueue(context.Background(), QueueBilling, "job1"))

	health := engine.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, int64(1), health.QueuedJobs[QueueBilling])
	assert.Equal(t, int64(0), health.QueuedJobs[QueueRelease])
	assert.Zero(t, health.SpooledJobs)
	assert.WithinDuration(t, time.Now(), health.LastCheck, time.Second)

	ledger.healthError = errors.New("ledger locked")
	health = engine.Health()
	assert.False(t, health.Healthy)
	assert.Error(t, health.LedgerHealth)
}
