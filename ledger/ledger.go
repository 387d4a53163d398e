// Package ledger implements the billing ledger collaborator on SQLite:
// a per-user account balance debited once per billed job, with a
// transaction row per charge for audit.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/coreprint/spoold/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user    TEXT PRIMARY KEY,
	balance INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
	id         TEXT PRIMARY KEY,
	user       TEXT NOT NULL,
	amount     INTEGER NOT NULL,
	reference  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user);
`

// Options for the SQLite ledger
type Options struct {
	// Path is the SQLite database file
	Path string

	// AllowOverdraft lets debits drive a balance negative instead of
	// failing with ErrInsufficientFunds
	AllowOverdraft bool
}

// DefaultOptions returns default ledger options
func DefaultOptions() Options {
	return Options{
		Path:           "./data/ledger.db",
		AllowOverdraft: false,
	}
}

// SQLiteLedger implements the Ledger interface over a SQLite database
type SQLiteLedger struct {
	db      *sql.DB
	options Options
}

// NewLedger creates a new SQLite ledger
func NewLedger(options Options) *SQLiteLedger {
	return &SQLiteLedger{options: options}
}

// Connect opens the database and applies the schema
func (l *SQLiteLedger) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", l.options.Path)
	if err != nil {
		return errors.NewConnectionError(l.options.Path,
			fmt.Errorf("failed to open ledger database: %w", err))
	}

	// Serialized access; the billing stage is the only writer but tests
	// and provisioning tools may connect concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return errors.NewConnectionError(l.options.Path,
			fmt.Errorf("failed to apply ledger schema: %w", err))
	}

	l.db = db
	return nil
}

// Close closes the database
func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Health checks the database connection
func (l *SQLiteLedger) Health() error {
	if l.db == nil {
		return errors.ErrNotConnected
	}
	return l.db.Ping()
}

// Debit charges the user's account and records a transaction. The account
// row is created on first touch. Unless overdraft is allowed, a debit that
// would drive the balance negative fails and the balance is untouched.
func (l *SQLiteLedger) Debit(ctx context.Context, user string, amount int, reference string) error {
	if l.db == nil {
		return errors.ErrNotConnected
	}
	if amount < 0 {
		return errors.NewLedgerError(user, fmt.Errorf("negative debit amount %d", amount))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewLedgerError(user, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (user, balance) VALUES (?, 0)`, user); err != nil {
		return errors.NewLedgerError(user, err)
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE user = ?`, user).Scan(&balance); err != nil {
		return errors.NewLedgerError(user, err)
	}

	if !l.options.AllowOverdraft && balance < int64(amount) {
		return errors.NewLedgerError(user,
			fmt.Errorf("%w: balance %d, debit %d", errors.ErrInsufficientFunds, balance, amount))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE user = ?`, amount, user); err != nil {
		return errors.NewLedgerError(user, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user, amount, reference, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), user, -amount, reference, time.Now().UTC()); err != nil {
		return errors.NewLedgerError(user, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewLedgerError(user, err)
	}

	return nil
}

// Credit tops up the user's account. Used by provisioning and tests.
func (l *SQLiteLedger) Credit(ctx context.Context, user string, amount int, reference string) error {
	if l.db == nil {
		return errors.ErrNotConnected
	}
	if amount < 0 {
		return errors.NewLedgerError(user, fmt.Errorf("negative credit amount %d", amount))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewLedgerError(user, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (user, balance) VALUES (?, ?)
		 ON CONFLICT(user) DO UPDATE SET balance = balance + ?`,
		user, amount, amount); err != nil {
		return errors.NewLedgerError(user, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user, amount, reference, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), user, amount, reference, time.Now().UTC()); err != nil {
		return errors.NewLedgerError(user, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewLedgerError(user, err)
	}

	return nil
}

// Balance returns the user's current balance. A user with no account has a
// balance of zero.
func (l *SQLiteLedger) Balance(ctx context.Context, user string) (int64, error) {
	if l.db == nil {
		return 0, errors.ErrNotConnected
	}

	var balance int64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE user = ?`, user).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewLedgerError(user, err)
	}

	return balance, nil
}
