// Package engines provides pre-configured pipeline setups combining a
// hand-off queue broker, spool store, ledger and statistics backend with
// sensible defaults.
//
// Three broker backends are available:
//
//   - Memory: in-process bounded channels (single-process deployments)
//   - Redis: shared Redis lists
//   - RabbitMQ: durable AMQP queues
//
// Example usage:
//
//	cfg, _ := config.Load("spoold.yaml")
//	engine, err := engines.NewFromConfig(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine.Run(ctx)
package engines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreprint/spoold/brokers/memory"
	"github.com/coreprint/spoold/brokers/rabbitmq"
	"github.com/coreprint/spoold/brokers/redis"
	"github.com/coreprint/spoold/config"
	"github.com/coreprint/spoold/core"
	"github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/ledger"
	"github.com/coreprint/spoold/server"
	"github.com/coreprint/spoold/spool"
	"github.com/coreprint/spoold/stages"
	memstats "github.com/coreprint/spoold/statistics/memory"
)

// SpoolEngine bundles a configured pipeline with its components.
type SpoolEngine struct {
	engine *core.Engine
	broker core.Broker
	store  *spool.Store
	ledger *ledger.SQLiteLedger
	stats  *memstats.MemoryStatistics
	server *server.Server
}

// NewFromConfig builds a pipeline from the loaded configuration, selecting
// the broker backend from queue.broker.
func NewFromConfig(cfg *config.Config, options ...core.EngineOption) (*SpoolEngine, error) {
	switch cfg.Queue.Broker {
	case "memory":
		return NewMemoryEngine(cfg, options...)
	case "redis":
		return NewRedisEngine(cfg, options...)
	case "rabbitmq":
		return NewRabbitMQEngine(cfg, options...)
	default:
		return nil, fmt.Errorf("%w: unknown broker %q", errors.ErrInvalidConfig, cfg.Queue.Broker)
	}
}

// NewMemoryEngine creates a pipeline on in-process bounded queues.
func NewMemoryEngine(cfg *config.Config, options ...core.EngineOption) (*SpoolEngine, error) {
	broker := memory.NewBroker(memory.Options{QueueSize: cfg.Queue.Capacity})
	return assemble(cfg, broker, options...)
}

// NewRedisEngine creates a pipeline on Redis-backed queues.
func NewRedisEngine(cfg *config.Config, options ...core.EngineOption) (*SpoolEngine, error) {
	brokerOptions := redis.DefaultOptions()
	brokerOptions.URI = cfg.Queue.RedisURI
	if cfg.Queue.Namespace != "" {
		brokerOptions.Namespace = cfg.Queue.Namespace
	}

	return assemble(cfg, redis.NewBroker(brokerOptions), options...)
}

// NewRabbitMQEngine creates a pipeline on RabbitMQ-backed queues.
func NewRabbitMQEngine(cfg *config.Config, options ...core.EngineOption) (*SpoolEngine, error) {
	brokerOptions := rabbitmq.DefaultOptions()
	brokerOptions.URI = cfg.Queue.AMQPURI

	return assemble(cfg, rabbitmq.NewBroker(brokerOptions), options...)
}

// assemble wires the shared components around the chosen broker.
func assemble(cfg *config.Config, broker core.Broker, options ...core.EngineOption) (*SpoolEngine, error) {
	store, err := spool.Open(cfg.Spooler.SpoolDir)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Billing.LedgerPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}

	billingLedger := ledger.NewLedger(ledger.Options{
		Path:           cfg.Billing.LedgerPath,
		AllowOverdraft: cfg.Billing.AllowOverdraft,
	})

	stats := memstats.NewStatistics()

	interval := cfg.Queue.PollInterval

	stageList := []core.Stage{
		stages.NewRelease(broker, store, stats, nil, interval),
		stages.NewBilling(broker, store, billingLedger, stats, interval),
		stages.NewDispatch(broker, store, cfg, stats, interval,
			stages.DefaultDispatchOptions()),
	}

	ingestor := server.NewServer(store, broker, stats, server.Options{
		Addr:               cfg.ListenAddr(),
		IdleTimeout:        cfg.Spooler.IdleTimeout,
		MaxConnections:     cfg.Spooler.MaxConnections,
		MaxSubmissionBytes: cfg.Spooler.MaxSubmissionBytes,
	})

	engine := core.NewEngine(broker, store, billingLedger, stats, stageList, ingestor, options...)

	return &SpoolEngine{
		engine: engine,
		broker: broker,
		store:  store,
		ledger: billingLedger,
		stats:  stats,
		server: ingestor,
	}, nil
}

// Run starts the engine and blocks until shutdown
func (e *SpoolEngine) Run(ctx context.Context) error {
	return e.engine.Run(ctx)
}

// Start begins processing submissions
func (e *SpoolEngine) Start(ctx context.Context) error {
	return e.engine.Start(ctx)
}

// Stop gracefully shuts down the engine
func (e *SpoolEngine) Stop() error {
	return e.engine.Stop()
}

// Health returns the current health status
func (e *SpoolEngine) Health() core.HealthStatus {
	return e.engine.Health()
}

// Addr returns the bound ingestion address. Valid after Start.
func (e *SpoolEngine) Addr() string {
	return e.server.Addr()
}

// Store returns the spool store
func (e *SpoolEngine) Store() *spool.Store {
	return e.store
}

// Ledger returns the billing ledger
func (e *SpoolEngine) Ledger() *ledger.SQLiteLedger {
	return e.ledger
}

// Statistics returns the statistics backend
func (e *SpoolEngine) Statistics() *memstats.MemoryStatistics {
	return e.stats
}
