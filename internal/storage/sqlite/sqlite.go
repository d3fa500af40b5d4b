// Package sqlite implements the TaskVault storage interface on SQLite,
// using the pure-Go ncruces/go-sqlite3 driver (no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskvault/taskvault/internal/storage"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting every query method run either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed implementation of storage.Store.
type Store struct {
	db     *sql.DB // nil when this Store is a transaction view
	q      querier
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// RunMigrations applies pending schema migrations after opening.
	RunMigrations bool
	Logger        *slog.Logger
}

// Open opens (creating if necessary) the database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// The ncruces driver requires the file: prefix. _txlock=immediate makes
	// write transactions take the lock up front so competing writers queue
	// instead of deadlocking mid-transaction.
	db, err := sql.Open("sqlite3", "file:"+path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	s := &Store{db: db, q: db, logger: logger}

	if opts.RunMigrations {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close closes the underlying database. Calling Close on a transaction
// view is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTransaction executes fn atomically inside BEGIN IMMEDIATE. When
// SQLite reports the database busy or locked, the transaction is retried
// with exponential backoff, at most three attempts in total.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.db == nil {
		// Already in a transaction; nest by reusing it.
		return fn(s)
	}

	attempt := func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusyError(err) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}

		txStore := &Store{q: tx, logger: s.logger}
		if err := fn(txStore); err != nil {
			tx.Rollback()
			if isBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(retryPolicy(), ctx))
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Unwrap()
	}
	return err
}

// retryPolicy bounds busy handling to three attempts in total: the
// initial one plus two retries.
func retryPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(25*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
	), 2)
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// dbErr wraps a raw database failure into the typed error surface.
func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", storage.ErrDatabase, op, err)
}

// Timestamps are stored as RFC 3339 UTC with second precision.
const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
