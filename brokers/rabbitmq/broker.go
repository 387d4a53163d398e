// Package rabbitmq implements the Broker interface over RabbitMQ, one
// durable queue per pipeline stage with persistent messages.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/coreprint/spoold/errors"
)

// RabbitMQBroker implements the Broker interface for RabbitMQ
type RabbitMQBroker struct {
	connection     *amqp.Connection
	channel        *amqp.Channel
	options        Options
	declaredQueues map[string]bool // Track declared queues
	mu             sync.RWMutex
	notifyClose    chan *amqp.Error
	isConnected    bool
}

// NewBroker creates a new RabbitMQ broker
func NewBroker(options Options) *RabbitMQBroker {
	return &RabbitMQBroker{
		options:        options,
		declaredQueues: make(map[string]bool),
	}
}

// Connect establishes connection to RabbitMQ
func (r *RabbitMQBroker) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connect()
}

// connect establishes the connection and channel, and sets up monitoring.
// This method expects the caller to hold the lock.
func (r *RabbitMQBroker) connect() error {
	conn, err := amqp.Dial(r.options.URI)
	if err != nil {
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("failed to connect to RabbitMQ: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.NewConnectionError(r.options.URI,
			fmt.Errorf("failed to open channel: %w", err))
	}

	r.connection = conn
	r.channel = ch
	r.declaredQueues = make(map[string]bool)

	// Watch for closing
	r.notifyClose = make(chan *amqp.Error)
	r.connection.NotifyClose(r.notifyClose)
	r.isConnected = true

	if r.options.ReconnectEnabled {
		go r.handleReconnection()
	}

	return nil
}

func (r *RabbitMQBroker) handleReconnection() {
	err := <-r.notifyClose
	if err == nil {
		return // Graceful shutdown
	}
	slog.Warn("Connection closed, reconnecting...", "error", err)

	r.mu.Lock()
	r.isConnected = false
	r.mu.Unlock()

	for {
		time.Sleep(r.options.ReconnectDelay)

		r.mu.Lock()
		if r.isConnected {
			r.mu.Unlock()
			return
		}

		err := r.connect()
		r.mu.Unlock()

		if err == nil {
			slog.Info("Reconnected to RabbitMQ")
			return
		}
		slog.Warn("Reconnect failed", "error", err)
	}
}

// Close closes the RabbitMQ connection
func (r *RabbitMQBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isConnected = false

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.connection != nil {
		return r.connection.Close()
	}
	return nil
}

// Health checks the RabbitMQ connection health
func (r *RabbitMQBroker) Health() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.isConnected || r.connection == nil || r.connection.IsClosed() {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the broker type
func (r *RabbitMQBroker) Type() string {
	return "rabbitmq"
}

// Enqueue publishes a job identifier to the stage queue
func (r *RabbitMQBroker) Enqueue(ctx context.Context, queue, id string) error {
	channel, err := r.getChannel()
	if err != nil {
		return err
	}

	if err := r.ensureQueue(queue); err != nil {
		return errors.NewBrokerError("ensure_queue", queue, err)
	}

	err = channel.PublishWithContext(
		ctx,
		"",                 // default exchange
		r.queueName(queue), // routing key (queue name)
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			Body:         []byte(id),
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    id,
		},
	)
	if err != nil {
		return errors.NewBrokerError("enqueue", queue, err)
	}

	return nil
}

// Dequeue fetches the oldest identifier from the stage queue
func (r *RabbitMQBroker) Dequeue(ctx context.Context, queue string) (string, bool, error) {
	channel, err := r.getChannel()
	if err != nil {
		return "", false, err
	}

	if err := r.ensureQueue(queue); err != nil {
		return "", false, errors.NewBrokerError("ensure_queue", queue, err)
	}

	// autoAck: hand-off semantics, the producer only enqueued after its
	// side effect completed
	delivery, ok, err := channel.Get(r.queueName(queue), true)
	if err != nil {
		return "", false, errors.NewBrokerError("dequeue", queue, err)
	}
	if !ok {
		return "", false, nil
	}

	return string(delivery.Body), true, nil
}

// QueueLength returns the number of identifiers waiting in a queue
func (r *RabbitMQBroker) QueueLength(ctx context.Context, name string) (int64, error) {
	channel, err := r.getChannel()
	if err != nil {
		return 0, err
	}

	state, err := channel.QueueDeclarePassive(
		r.queueName(name), true, false, false, false, nil)
	if err != nil {
		return 0, errors.NewBrokerError("queue_length", name, err)
	}

	return int64(state.Messages), nil
}

func (r *RabbitMQBroker) getChannel() (*amqp.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.isConnected || r.channel == nil {
		return nil, errors.ErrNotConnected
	}
	return r.channel, nil
}

func (r *RabbitMQBroker) ensureQueue(queue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.declaredQueues[queue] {
		return nil
	}

	if r.channel == nil {
		return errors.ErrNotConnected
	}

	_, err := r.channel.QueueDeclare(
		r.queueName(queue), // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return err
	}

	r.declaredQueues[queue] = true
	return nil
}

func (r *RabbitMQBroker) queueName(queue string) string {
	return r.options.QueuePrefix + queue
}
