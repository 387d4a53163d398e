package stages

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreprint/spoold/core"
	"github.com/coreprint/spoold/spool"
)

// Policy decides whether a spooled job may proceed to billing. A nil return
// admits the job; an error denies it with that reason. This is the seam for
// quota holds and manual approval.
type Policy func(ctx context.Context, id string) error

// AdmitAll is the baseline policy: every job proceeds immediately.
func AdmitAll(ctx context.Context, id string) error {
	return nil
}

// Release forwards admitted job identifiers from the release queue to the
// billing queue, preserving arrival order.
type Release struct {
	broker   core.Broker
	store    *spool.Store
	stats    core.Statistics
	policy   Policy
	interval time.Duration
}

// NewRelease creates the release stage. A nil policy admits all jobs.
func NewRelease(
	broker core.Broker,
	store *spool.Store,
	stats core.Statistics,
	policy Policy,
	interval time.Duration,
) *Release {
	if policy == nil {
		policy = AdmitAll
	}

	return &Release{
		broker:   broker,
		store:    store,
		stats:    stats,
		policy:   policy,
		interval: interval,
	}
}

// Name returns the stage name
func (r *Release) Name() string {
	return "release"
}

// Run consumes the release queue until ctx is done
func (r *Release) Run(ctx context.Context) error {
	return consume(ctx, r.broker, core.QueueRelease, r.interval, r.handle)
}

func (r *Release) handle(ctx context.Context, id string) {
	if err := r.policy(ctx, id); err != nil {
		deadLetter(ctx, r.store, r.stats, r.Name(), id, err)
		return
	}

	slog.Debug("Forwarding job for billing", "job", id)

	if err := r.broker.Enqueue(ctx, core.QueueBilling, id); err != nil {
		deadLetter(ctx, r.store, r.stats, r.Name(), id, err)
	}
}
