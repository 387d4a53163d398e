package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/spool"
	"github.com/coreprint/spoold/statistics/noop"
)

// Engine is the main orchestration engine: it owns the broker, spool store,
// ledger and statistics connections, supervises the stage workers, and
// sequences bring-up so the ingestion listener only accepts submissions
// once every downstream stage is running.
type Engine struct {
	broker   Broker
	store    *spool.Store
	ledger   Ledger
	stats    Statistics
	stages   []Stage
	ingestor Ingestor
	config   *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new engine with dependency injection
func NewEngine(
	broker Broker,
	store *spool.Store,
	ledger Ledger,
	stats Statistics,
	stages []Stage,
	ingestor Ingestor,
	options ...EngineOption,
) *Engine {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	if stats == nil {
		stats = noop.NewStatistics()
	}

	return &Engine{
		broker:   broker,
		store:    store,
		ledger:   ledger,
		stats:    stats,
		stages:   stages,
		ingestor: ingestor,
		config:   config,
	}
}

// Start brings up the pipeline: backend connections first, then the stage
// workers, then the ingestion listener.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.broker.Connect(e.ctx); err != nil {
		return errors.NewConnectionError("",
			fmt.Errorf("failed to connect broker: %w", err))
	}

	if err := e.stats.Connect(e.ctx); err != nil {
		return errors.NewConnectionError("",
			fmt.Errorf("failed to connect statistics: %w", err))
	}

	if err := e.ledger.Connect(e.ctx); err != nil {
		return errors.NewConnectionError("",
			fmt.Errorf("failed to connect ledger: %w", err))
	}

	for _, stage := range e.stages {
		e.wg.Add(1)
		go e.supervise(stage)
	}

	// Ingestion starts last so any identifier it enqueues has a consumer.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.ingestor.Serve(e.ctx); err != nil {
			slog.Error("Ingestion listener error", "error", err)
		}
	}()

	select {
	case <-e.ingestor.Ready():
		slog.Info("Engine started", "addr", e.ingestor.Addr(), "broker", e.broker.Type())
	case <-e.ctx.Done():
		return e.ctx.Err()
	}

	return nil
}

// supervise runs a stage, restarting it after a delay when its loop returns
// an error. One bad backend hiccup must not permanently kill a stage.
func (e *Engine) supervise(stage Stage) {
	defer e.wg.Done()

	for {
		err := stage.Run(e.ctx)
		if err == nil || e.ctx.Err() != nil {
			slog.Info("Stage stopped", "stage", stage.Name())
			return
		}

		slog.Error("Stage failed, restarting", "stage", stage.Name(),
			"error", err, "delay", e.config.RestartDelay)

		select {
		case <-e.ctx.Done():
			return
		case <-time.After(e.config.RestartDelay):
		}
	}
}

// Stop gracefully shuts down the engine
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}

	// Wait for graceful shutdown
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Engine stopped gracefully")
	case <-time.After(e.config.ShutdownTimeout):
		slog.Warn("Engine shutdown timeout exceeded")
	}

	// Close connections
	if err := e.broker.Close(); err != nil {
		slog.Error("Error closing broker", "error", err)
	}

	if err := e.ledger.Close(); err != nil {
		slog.Error("Error closing ledger", "error", err)
	}

	if err := e.stats.Close(); err != nil {
		slog.Error("Error closing statistics", "error", err)
	}

	return nil
}

// Health returns the current health status
func (e *Engine) Health() HealthStatus {
	queuedJobs := make(map[string]int64)
	for _, queue := range []string{QueueRelease, QueueBilling, QueueDispatch} {
		if length, err := e.broker.QueueLength(e.ctx, queue); err == nil {
			queuedJobs[queue] = length
		}
	}

	spooled, _ := e.store.Len()

	brokerHealth := e.broker.Health()
	statsHealth := e.stats.Health()
	ledgerHealth := e.ledger.Health()

	return HealthStatus{
		Healthy:      brokerHealth == nil && statsHealth == nil && ledgerHealth == nil,
		BrokerHealth: brokerHealth,
		StatsHealth:  statsHealth,
		LedgerHealth: ledgerHealth,
		QueuedJobs:   queuedJobs,
		SpooledJobs:  spooled,
		LastCheck:    time.Now(),
	}
}

// Run starts the engine and blocks until shutdown signals are received
// This is a convenience method that combines Start() + signal handling + Stop()
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	}

	return e.Stop()
}
