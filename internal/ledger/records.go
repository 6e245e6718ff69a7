package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one row of the live sweep: an object the cursor has reached and,
// once checked, its outcome.
type Record struct {
	Seq        int64      `json:"seq"`
	Identifier string     `json:"identifier"`
	AddedOn    time.Time  `json:"added_on"`
	VerifiedOn *time.Time `json:"verified_on,omitempty"`
	Correct    *bool      `json:"correct,omitempty"`
}

// Verified reports whether the record has been checked.
func (r *Record) Verified() bool {
	return r != nil && r.VerifiedOn != nil
}

// Corrupted reports whether the record was checked and found corrupted.
func (r *Record) Corrupted() bool {
	return r.Verified() && r.Correct != nil && !*r.Correct
}

// Summary aggregates the records of one sweep.
type Summary struct {
	Total        int       `json:"total"`
	Verified     int       `json:"verified"`
	Corrupted    int       `json:"corrupted"`
	Pending      int       `json:"pending"`
	FirstAdded   time.Time `json:"first_added,omitempty"`
	LastVerified time.Time `json:"last_verified,omitempty"`
}

var (
	// ErrRecordNotFound reports an update against an identifier with no record.
	ErrRecordNotFound = errors.New("ledger record not found")
	// ErrAlreadyVerified reports a second attempt to complete the same record.
	ErrAlreadyVerified = errors.New("ledger record already verified")
	// ErrDuplicateIdentifier reports an insert for an identifier already in the sweep.
	ErrDuplicateIdentifier = errors.New("identifier already recorded in this sweep")
)

const recordColumns = "seq, identifier, added_on, verified_on, correct"

// timeLayout is fixed width so stored stamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type rowScanner interface {
	Scan(dest ...any) error
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		seq         int64
		identifier  string
		addedRaw    string
		verifiedRaw sql.NullString
		correct     sql.NullInt64
	)
	if err := scanner.Scan(&seq, &identifier, &addedRaw, &verifiedRaw, &correct); err != nil {
		return nil, err
	}
	record := &Record{Seq: seq, Identifier: identifier}
	if added, err := parseTimeString(addedRaw); err == nil {
		record.AddedOn = added
	}
	if verifiedRaw.Valid {
		if verified, err := parseTimeString(verifiedRaw.String); err == nil {
			record.VerifiedOn = &verified
		}
	}
	if correct.Valid {
		value := correct.Int64 != 0
		record.Correct = &value
	}
	return record, nil
}

func scanOptional(row *sql.Row, op string) (*Record, error) {
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return record, nil
}

func querySummary(ctx context.Context, q rowQuerier) (Summary, error) {
	var (
		summary     Summary
		verified    sql.NullInt64
		corrupted   sql.NullInt64
		firstAdded  sql.NullString
		lastChecked sql.NullString
	)
	row := q.QueryRowContext(ctx, `SELECT
            COUNT(1),
            SUM(CASE WHEN verified_on IS NOT NULL THEN 1 ELSE 0 END),
            SUM(CASE WHEN correct = 0 THEN 1 ELSE 0 END),
            MIN(added_on),
            MAX(verified_on)
        FROM verification_records`)
	if err := row.Scan(&summary.Total, &verified, &corrupted, &firstAdded, &lastChecked); err != nil {
		return Summary{}, fmt.Errorf("summarize ledger: %w", err)
	}
	summary.Verified = int(verified.Int64)
	summary.Corrupted = int(corrupted.Int64)
	summary.Pending = summary.Total - summary.Verified
	if firstAdded.Valid {
		summary.FirstAdded, _ = parseTimeString(firstAdded.String)
	}
	if lastChecked.Valid {
		summary.LastVerified, _ = parseTimeString(lastChecked.String)
	}
	return summary, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
