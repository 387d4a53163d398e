package stages

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreprint/spoold/core"
	"github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/postscript"
	"github.com/coreprint/spoold/spool"
)

// Billing consumes release-approved jobs, derives the cost from the
// persisted page-description payload, debits the originating user, and
// forwards the job to dispatch. A job whose payload cannot be read or
// whose debit fails is dead-lettered, never forwarded.
type Billing struct {
	broker   core.Broker
	store    *spool.Store
	ledger   core.Ledger
	stats    core.Statistics
	interval time.Duration
}

// NewBilling creates the billing stage
func NewBilling(
	broker core.Broker,
	store *spool.Store,
	ledger core.Ledger,
	stats core.Statistics,
	interval time.Duration,
) *Billing {
	return &Billing{
		broker:   broker,
		store:    store,
		ledger:   ledger,
		stats:    stats,
		interval: interval,
	}
}

// Name returns the stage name
func (b *Billing) Name() string {
	return "billing"
}

// Run consumes the billing queue until ctx is done
func (b *Billing) Run(ctx context.Context) error {
	return consume(ctx, b.broker, core.QueueBilling, b.interval, b.handle)
}

func (b *Billing) handle(ctx context.Context, id string) {
	j, err := b.store.Get(id)
	if err != nil {
		deadLetter(ctx, b.store, b.stats, b.Name(), id,
			errors.NewPayloadMissingError(id, err))
		return
	}

	if j.Postscript == "" {
		deadLetter(ctx, b.store, b.stats, b.Name(), id,
			errors.NewPayloadMissingError(id, errors.ErrMissingField))
		return
	}

	analysis := postscript.Analyze(j.Postscript)

	if err := b.ledger.Debit(ctx, j.OriginUser, analysis.Cost, id); err != nil {
		deadLetter(ctx, b.store, b.stats, b.Name(), id, err)
		return
	}

	slog.Info("Billed user", "job", id, "user", j.OriginUser,
		"cost", analysis.Cost, "pages", analysis.Pages, "duplex", analysis.Duplex)

	if err := b.stats.RecordBilled(ctx, id, j.OriginUser, analysis.Cost); err != nil {
		slog.Error("Failed to record billing", "job", id, "error", err)
	}

	slog.Debug("Forwarding job to dispatch", "job", id)

	if err := b.broker.Enqueue(ctx, core.QueueDispatch, id); err != nil {
		deadLetter(ctx, b.store, b.stats, b.Name(), id, err)
	}
}
