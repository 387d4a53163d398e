package stages

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/coreprint/spoold/core"
	"github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/spool"
)

// DispatchOptions for the dispatch stage
type DispatchOptions struct {
	// DialTimeout bounds the outbound connection attempt
	DialTimeout time.Duration

	// WriteTimeout bounds the payload transmission
	WriteTimeout time.Duration
}

// DefaultDispatchOptions returns default dispatch options
func DefaultDispatchOptions() DispatchOptions {
	return DispatchOptions{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Dispatch consumes billed jobs, transmits the payload to the destination
// printer, and retires the spool entry. The entry is removed only after a
// successful transmission; an unknown printer or transport failure
// dead-letters it instead.
type Dispatch struct {
	broker   core.Broker
	store    *spool.Store
	registry core.PrinterRegistry
	stats    core.Statistics
	interval time.Duration
	options  DispatchOptions
}

// NewDispatch creates the dispatch stage
func NewDispatch(
	broker core.Broker,
	store *spool.Store,
	registry core.PrinterRegistry,
	stats core.Statistics,
	interval time.Duration,
	options DispatchOptions,
) *Dispatch {
	if options.DialTimeout <= 0 {
		options.DialTimeout = DefaultDispatchOptions().DialTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultDispatchOptions().WriteTimeout
	}

	return &Dispatch{
		broker:   broker,
		store:    store,
		registry: registry,
		stats:    stats,
		interval: interval,
		options:  options,
	}
}

// Name returns the stage name
func (d *Dispatch) Name() string {
	return "dispatch"
}

// Run consumes the dispatch queue until ctx is done
func (d *Dispatch) Run(ctx context.Context) error {
	return consume(ctx, d.broker, core.QueueDispatch, d.interval, d.handle)
}

func (d *Dispatch) handle(ctx context.Context, id string) {
	slog.Debug("Got print request", "job", id)

	j, err := d.store.Get(id)
	if err != nil {
		deadLetter(ctx, d.store, d.stats, d.Name(), id,
			errors.NewPayloadMissingError(id, err))
		return
	}

	addr, ok := d.registry.ResolvePrinter(j.DestPrinter)
	if !ok {
		deadLetter(ctx, d.store, d.stats, d.Name(), id,
			errors.NewUnknownPrinterError(j.DestPrinter))
		return
	}

	sent, err := d.transmit(addr, []byte(j.Postscript))
	if err != nil {
		deadLetter(ctx, d.store, d.stats, d.Name(), id, err)
		return
	}

	slog.Info("Printed job", "job", id, "printer", j.DestPrinter,
		"addr", addr, "bytes", sent)

	if err := d.stats.RecordDispatched(ctx, id, j.DestPrinter, sent); err != nil {
		slog.Error("Failed to record dispatch", "job", id, "error", err)
	}

	// Exactly one removal per job: only dispatch deletes spool entries,
	// and only after the payload reached the printer.
	if err := d.store.Remove(id); err != nil {
		slog.Error("Failed to remove spool entry", "job", id, "error", err)
		return
	}

	slog.Info("Completed handling of job", "job", id)
}

// transmit opens an outbound connection to the printer, writes the payload
// and closes the connection. Returns the number of bytes written.
func (d *Dispatch) transmit(addr string, payload []byte) (int, error) {
	conn, err := net.DialTimeout("tcp", addr, d.options.DialTimeout)
	if err != nil {
		return 0, errors.NewTransportError("dial", addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(d.options.WriteTimeout)); err != nil {
		return 0, errors.NewTransportError("send", addr, err)
	}

	sent := 0
	for sent < len(payload) {
		n, err := conn.Write(payload[sent:])
		sent += n
		if err != nil {
			return sent, errors.NewTransportError("send", addr, err)
		}
	}

	return sent, nil
}
