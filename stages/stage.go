// Package stages implements the pipeline stage workers: Release, Billing
// and Dispatch. Each runs as a single sequential loop over its input queue,
// so jobs are processed one at a time in arrival order. Per-job failures
// are dead-lettered, never allowed to kill the stage loop.
package stages

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreprint/spoold/core"
	"github.com/coreprint/spoold/spool"
)

// consume polls the named queue and invokes handle for each identifier.
// It returns nil on ctx cancellation and a non-nil error only on a broker
// failure, which the engine answers with a supervised restart.
func consume(
	ctx context.Context,
	broker core.Broker,
	queue string,
	interval time.Duration,
	handle func(ctx context.Context, id string),
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		id, ok, err := broker.Dequeue(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
			continue
		}

		handle(ctx, id)
	}
}

// deadLetter moves a failed job out of the active spool and records why.
func deadLetter(
	ctx context.Context,
	store *spool.Store,
	stats core.Statistics,
	stage, id string,
	reason error,
) {
	slog.Error("Dead-lettering job", "stage", stage, "job", id, "error", reason)

	if err := store.Bury(id, reason); err != nil {
		slog.Error("Failed to bury job", "stage", stage, "job", id, "error", err)
	}

	if err := stats.RecordDeadLettered(ctx, id, stage, reason); err != nil {
		slog.Error("Failed to record dead-letter", "stage", stage, "job", id, "error", err)
	}
}
