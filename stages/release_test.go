package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreprint/spoold/core"
)

func TestRelease_ForwardsInOrder(t *testing.T) {
	t.Parallel()

	setup := newTestSetup(t)
	stage := NewRelease(setup.Broker, setup.Store, setup.Stats, nil, testInterval)
	assert.Equal(t, "release", stage.Name())

	setup.spoolJob(t, duplexJob("first"), core.QueueRelease)
	setup.spoolJob(t, duplexJob("second"), core.QueueRelease)

	runStage(t, stage)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		length, err := setup.Broker.QueueLength(ctx, core.QueueBilling)
		return err == nil && length == 2
	}, time.Second, testInterval)

	for _, expected := range []string{"first", "second"} {
		id, ok, err := setup.Broker.Dequeue(ctx, core.QueueBilling)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, expected, id)
	}
}

func TestRelease_PolicyDeniesJob(t *testing.T) {
	t.Parallel()

	setup := newTestSetup(t)
	denied := errors.New("held for approval")
	policy := func(ctx context.Context, id string) error {
		if id == "held" {
			return denied
		}
		return nil
	}

	stage := NewRelease(setup.Broker, setup.Store, setup.Stats, policy, testInterval)

	setup.spoolJob(t, duplexJob("held"), core.QueueRelease)
	setup.spoolJob(t, duplexJob("free"), core.QueueRelease)

	runStage(t, stage)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		length, err := setup.Broker.QueueLength(ctx, core.QueueBilling)
		return err == nil && length == 1
	}, time.Second, testInterval)

	id, ok, err := setup.Broker.Dequeue(ctx, core.QueueBilling)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "free", id)

	// The denied job left the active spool for the dead-letter area.
	assert.False(t, setup.Store.Contains("held"))
	dead, err := setup.Store.Dead()
	require.NoError(t, err)
	assert.Equal(t, []string{"held"}, dead)

	records := setup.Stats.DeadLettered()
	require.Len(t, records, 1)
	assert.Equal(t, "held", records[0].ID)
	assert.Equal(t, "release", records[0].Stage)
}
