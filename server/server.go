// Package server implements the job ingestion service: a TCP listener
// accepting one submission per connection.
//
// Each connection is read to exhaustion under a per-read idle deadline,
// decoded (base64-wrapped JSON), persisted to the spool store, and its
// identifier enqueued for release. The submitter receives a single JSON
// acknowledgment frame before the connection closes. Concurrent handler
// goroutines are capped by a semaphore.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coreprint/spoold/core"
	spoolderrors "github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/job"
	"github.com/coreprint/spoold/spool"
)

// Options for the ingestion server
type Options struct {
	// Addr is the listen address, host:port
	Addr string

	// IdleTimeout bounds each read so a stalled peer cannot pin a handler
	IdleTimeout time.Duration

	// MaxConnections caps concurrent submission handlers
	MaxConnections int

	// MaxSubmissionBytes caps the accumulated size of one submission
	MaxSubmissionBytes int64

	// AckTimeout bounds the acknowledgment write
	AckTimeout time.Duration
}

// DefaultOptions returns default server options
func DefaultOptions() Options {
	return Options{
		Addr:               "0.0.0.0:7631",
		IdleTimeout:        time.Second,
		MaxConnections:     64,
		MaxSubmissionBytes: 32 << 20,
		AckTimeout:         5 * time.Second,
	}
}

// Server is the job ingestion service
type Server struct {
	store   *spool.Store
	broker  core.Broker
	stats   core.Statistics
	options Options

	listener net.Listener
	ready    chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a new ingestion server
func NewServer(store *spool.Store, broker core.Broker, stats core.Statistics, options Options) *Server {
	if options.MaxConnections < 1 {
		options.MaxConnections = DefaultOptions().MaxConnections
	}
	if options.IdleTimeout <= 0 {
		options.IdleTimeout = DefaultOptions().IdleTimeout
	}
	if options.MaxSubmissionBytes <= 0 {
		options.MaxSubmissionBytes = DefaultOptions().MaxSubmissionBytes
	}
	if options.AckTimeout <= 0 {
		options.AckTimeout = DefaultOptions().AckTimeout
	}

	return &Server{
		store:   store,
		broker:  broker,
		stats:   stats,
		options: options,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address. Valid after Ready.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.options.Addr
	}
	return s.listener.Addr().String()
}

// Serve binds the listener and accepts submissions until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return spoolderrors.NewTransportError("bind", s.options.Addr, err)
	}

	s.listener = listener
	close(s.ready)
	slog.Info("Ingestion listening", "addr", s.Addr())

	// Unblock Accept on shutdown
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	sem := make(chan struct{}, s.options.MaxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				slog.Info("Ingestion stopped")
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return spoolderrors.NewTransportError("accept", s.Addr(), err)
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			s.wg.Wait()
			return nil
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-sem }()
			s.handle(ctx, c)
		}(conn)
	}
}

// handle processes a single submission connection.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sid := uuid.NewString()
	remote := conn.RemoteAddr().String()
	slog.Debug("Processing new submission", "sid", sid, "remote", remote)

	j, err := s.receive(conn)
	if err != nil {
		s.reject(ctx, conn, remote, sid, err)
		return
	}

	if err := s.store.Put(j); err != nil {
		s.reject(ctx, conn, remote, sid, err)
		return
	}

	if err := s.broker.Enqueue(ctx, core.QueueRelease, j.ID()); err != nil {
		// The entry must not stay spooled with no queue backing it.
		if rmErr := s.store.Remove(j.ID()); rmErr != nil {
			slog.Error("Failed to unspool job after enqueue failure",
				"sid", sid, "job", j.ID(), "error", rmErr)
		}
		s.reject(ctx, conn, remote, sid, err)
		return
	}

	if err := s.stats.RecordIngested(ctx, j); err != nil {
		slog.Error("Failed to record ingestion", "sid", sid, "error", err)
	}

	slog.Info("Received job", "sid", sid, "job", j.ID(),
		"user", j.OriginUser, "origin", j.OriginPrinter)

	s.acknowledge(conn, job.Accepted(j.ID()))
}

// receive reads the connection to exhaustion and decodes the submission.
func (s *Server) receive(conn net.Conn) (*job.Job, error) {
	var accumulated bytes.Buffer
	buf := make([]byte, 4096)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.options.IdleTimeout)); err != nil {
			return nil, spoolderrors.NewTransportError("read", conn.RemoteAddr().String(), err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if int64(accumulated.Len()+n) > s.options.MaxSubmissionBytes {
				return nil, spoolderrors.NewDecodeError("read",
					fmt.Errorf("submission exceeds %d bytes", s.options.MaxSubmissionBytes))
			}
			accumulated.Write(buf[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, spoolderrors.NewDecodeError("read",
					fmt.Errorf("%w: peer idle for %s", spoolderrors.ErrTimeout, s.options.IdleTimeout))
			}
			return nil, spoolderrors.NewTransportError("read", conn.RemoteAddr().String(), err)
		}
	}

	return job.DecodeSubmission(accumulated.Bytes())
}

// reject logs a failed submission and sends the rejection frame.
func (s *Server) reject(ctx context.Context, conn net.Conn, remote, sid string, err error) {
	slog.Warn("Rejected submission", "sid", sid, "remote", remote, "error", err)

	if statErr := s.stats.RecordRejected(ctx, remote, err); statErr != nil {
		slog.Error("Failed to record rejection", "sid", sid, "error", statErr)
	}

	s.acknowledge(conn, job.Rejected(err))
}

// acknowledge writes the single-frame response. Best effort: the job is
// already spooled (or already rejected) by the time this runs.
func (s *Server) acknowledge(conn net.Conn, ack job.Ack) {
	if err := conn.SetWriteDeadline(time.Now().Add(s.options.AckTimeout)); err != nil {
		return
	}

	if err := json.NewEncoder(conn).Encode(ack); err != nil {
		slog.Debug("Failed to write acknowledgment", "error", err)
	}
}
