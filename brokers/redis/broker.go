// Package redis implements the Broker interface over Redis lists, one
// RPUSH/LPOP list per hand-off queue. Lets multiple spoold processes share
// a pipeline, or the pipeline survive a process restart.
package redis

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/coreprint/spoold/errors"
	redisUtils "github.com/coreprint/spoold/internal/redis"
)

// RedisBroker implements the Broker interface for Redis
type RedisBroker struct {
	pool      *redis.Pool
	namespace string
	options   Options
}

// NewBroker creates a new Redis broker
func NewBroker(options Options) *RedisBroker {
	return &RedisBroker{
		namespace: options.Namespace,
		options:   options,
	}
}

// Connect establishes connection to Redis
func (r *RedisBroker) Connect(ctx context.Context) error {
	pool, err := redisUtils.CreatePool(r.options)
	if err != nil {
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("failed to create Redis pool: %w", err))
	}

	r.pool = pool

	// Test connection
	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("ping failed: %w", err))
	}

	return nil
}

// Close closes the Redis connection pool
func (r *RedisBroker) Close() error {
	if r.pool != nil {
		return r.pool.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisBroker) Health() error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("health check failed: %w", err))
	}

	return nil
}

// Type returns the broker type
func (r *RedisBroker) Type() string {
	return "redis"
}

// Enqueue appends a job identifier to the queue
func (r *RedisBroker) Enqueue(ctx context.Context, queue, id string) error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("RPUSH", r.queueKey(queue), id); err != nil {
		return errors.NewBrokerError("enqueue", queue, err)
	}

	return nil
}

// Dequeue removes the oldest identifier from the queue
func (r *RedisBroker) Dequeue(ctx context.Context, queue string) (string, bool, error) {
	if r.pool == nil {
		return "", false, errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	reply, err := redis.String(conn.Do("LPOP", r.queueKey(queue)))
	if err == redis.ErrNil {
		return "", false, nil // No identifier available
	}
	if err != nil {
		return "", false, errors.NewBrokerError("dequeue", queue, err)
	}

	return reply, true, nil
}

// QueueLength returns the number of identifiers waiting in a queue
func (r *RedisBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	if r.pool == nil {
		return 0, errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	length, err := redis.Int64(conn.Do("LLEN", r.queueKey(name)))
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}

	return length, nil
}

func (r *RedisBroker) queueKey(queue string) string {
	return r.namespace + "queue:" + queue
}
