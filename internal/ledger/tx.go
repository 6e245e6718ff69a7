package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tx exposes the ledger operations available inside Store.WithTx.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// Last returns the most recently added record, or nil when the sweep has not begun.
func (t *Tx) Last(ctx context.Context) (*Record, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM verification_records ORDER BY seq DESC LIMIT 1`)
	return scanOptional(row, "last record")
}

// Insert appends an unverified record for identifier.
func (t *Tx) Insert(ctx context.Context, identifier string) (*Record, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("insert record: identifier is required")
	}
	added := t.now().UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO verification_records (identifier, added_on) VALUES (?, ?)`,
		identifier, formatTime(added),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert record %s: %w", identifier, ErrDuplicateIdentifier)
		}
		return nil, fmt.Errorf("insert record %s: %w", identifier, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert record %s: %w", identifier, err)
	}
	return &Record{Seq: seq, Identifier: identifier, AddedOn: added}, nil
}

// MarkVerified completes the record for identifier. A record is completed at
// most once.
func (t *Tx) MarkVerified(ctx context.Context, identifier string, correct bool) error {
	verified := t.now().UTC()
	res, err := t.tx.ExecContext(ctx,
		`UPDATE verification_records SET verified_on = ?, correct = ? WHERE identifier = ? AND verified_on IS NULL`,
		formatTime(verified), boolToInt(correct), identifier,
	)
	if err != nil {
		return fmt.Errorf("mark %s verified: %w", identifier, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark %s verified: %w", identifier, err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM verification_records WHERE identifier = ?`, identifier).Scan(&exists); err != nil {
		return fmt.Errorf("mark %s verified: %w", identifier, err)
	}
	if exists == 0 {
		return fmt.Errorf("mark %s verified: %w", identifier, ErrRecordNotFound)
	}
	return fmt.Errorf("mark %s verified: %w", identifier, ErrAlreadyVerified)
}

// Summary aggregates the records visible to this transaction.
func (t *Tx) Summary(ctx context.Context) (Summary, error) {
	return querySummary(ctx, t.tx)
}

// Truncate deletes every record and reports how many were removed.
func (t *Tx) Truncate(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM verification_records`)
	if err != nil {
		return 0, fmt.Errorf("truncate ledger: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("truncate ledger: %w", err)
	}
	return removed, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
