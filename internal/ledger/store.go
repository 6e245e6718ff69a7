package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vigil/internal/config"
)

// Store persists sweep progress in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the ledger database under the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.LedgerPath())
}

// OpenPath opens the ledger stored at path, creating it when missing.
func OpenPath(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file backing the store.
func (s *Store) Path() string {
	return s.path
}

// SetClock overrides the time source used for added_on / verified_on stamps.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so every write fn made through the Tx
// lands atomically or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	var sqlTx *sql.Tx
	if err := retryOnBusy(ctx, func() error {
		var beginErr error
		sqlTx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	}); err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	tx := &Tx{tx: sqlTx, now: s.now}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback ledger tx: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Last returns the most recently added record, or nil when the ledger is empty.
func (s *Store) Last(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM verification_records ORDER BY seq DESC LIMIT 1`)
	return scanOptional(row, "last record")
}

// Get fetches the record for identifier, or nil when absent.
func (s *Store) Get(ctx context.Context, identifier string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM verification_records WHERE identifier = ?`, identifier)
	return scanOptional(row, "get record")
}

// List returns every record of the live sweep in insertion order.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM verification_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Summary aggregates the live sweep without modifying it.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	return querySummary(ensureContext(ctx), s.db)
}

// Finish summarizes the completed sweep and deletes all of its records in a
// single transaction.
func (s *Store) Finish(ctx context.Context) (Summary, error) {
	var summary Summary
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		if summary, err = tx.Summary(ctx); err != nil {
			return err
		}
		_, err = tx.Truncate(ctx)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// Clear removes every record, abandoning the live sweep. The next step starts
// again from the first catalog identifier.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM verification_records`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	return removed, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
