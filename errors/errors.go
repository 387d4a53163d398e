// Package errors provides error types and utilities for the spoold pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrNotConnected      = errors.New("not connected")
	ErrQueueClosed       = errors.New("queue is closed")
	ErrQueueFull         = errors.New("queue is full")
	ErrDuplicateJob      = errors.New("job already spooled")
	ErrEmptyJobName      = errors.New("job name cannot be empty")
	ErrInvalidJobName    = errors.New("job name is not a valid spool key")
	ErrMissingField      = errors.New("required field missing")
	ErrTimeout           = errors.New("operation timed out")
	ErrShutdown          = errors.New("shutting down")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrEntryNotFound     = errors.New("spool entry not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// DecodeError represents a malformed submission. The connection it arrived
// on is rejected; no job is created.
type DecodeError struct {
	Stage string // decode stage: read, base64, json, validate
	Err   error  // underlying error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PayloadMissingError represents a spool entry that cannot be read or lacks
// the page-description payload. Fatal to that job: it cannot be billed.
type PayloadMissingError struct {
	JobID string // spool key
	Err   error  // underlying error
}

func (e *PayloadMissingError) Error() string {
	return fmt.Sprintf("payload missing for job %s: %v", e.JobID, e.Err)
}

func (e *PayloadMissingError) Unwrap() error {
	return e.Err
}

// UnknownPrinterError represents a destination printer with no registry entry.
type UnknownPrinterError struct {
	Printer string // destination printer identifier
}

func (e *UnknownPrinterError) Error() string {
	return fmt.Sprintf("unknown printer %q", e.Printer)
}

// TransportError represents bind, accept, or outbound send failures.
type TransportError struct {
	Op   string // operation being performed
	Addr string // remote or local address (if applicable)
	Err  error  // underlying error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s on %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

func (e *TransportError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// BrokerError represents hand-off queue errors
type BrokerError struct {
	Op    string // operation being performed
	Queue string // queue name (if applicable)
	Err   error  // underlying error
}

func (e *BrokerError) Error() string {
	if e.Queue != "" {
		return fmt.Sprintf("broker %s on queue %s: %v", e.Op, e.Queue, e.Err)
	}
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// LedgerError represents billing ledger errors
type LedgerError struct {
	User string // account being debited (if applicable)
	Err  error  // underlying error
}

func (e *LedgerError) Error() string {
	if e.User != "" {
		return fmt.Sprintf("ledger for user %s: %v", e.User, e.Err)
	}
	return fmt.Sprintf("ledger: %v", e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// ConnectionError represents connection-related errors
type ConnectionError struct {
	URI string // connection URI (may be redacted)
	Err error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

func (e *ConnectionError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// Helper functions for creating errors

// NewDecodeError creates a new decode error
func NewDecodeError(stage string, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}

// NewPayloadMissingError creates a new payload missing error
func NewPayloadMissingError(jobID string, err error) error {
	return &PayloadMissingError{JobID: jobID, Err: err}
}

// NewUnknownPrinterError creates a new unknown printer error
func NewUnknownPrinterError(printer string) error {
	return &UnknownPrinterError{Printer: printer}
}

// NewTransportError creates a new transport error
func NewTransportError(op, addr string, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// NewBrokerError creates a new broker error
func NewBrokerError(op, queue string, err error) error {
	return &BrokerError{Op: op, Queue: queue, Err: err}
}

// NewLedgerError creates a new ledger error
func NewLedgerError(user string, err error) error {
	return &LedgerError{User: user, Err: err}
}

// NewConnectionError creates a new connection error
func NewConnectionError(uri string, err error) error {
	return &ConnectionError{URI: uri, Err: err}
}

// IsTemporary checks if an error is temporary and retryable
func IsTemporary(err error) bool {
	if t, ok := err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}

	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrQueueFull)
}

// IsTimeout checks if an error is a timeout
func IsTimeout(err error) bool {
	if t, ok := err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return errors.Is(err, ErrTimeout)
}
