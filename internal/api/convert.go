package api

import (
	"time"

	"vigil/internal/ledger"
	"vigil/internal/sweep"
)

// Sweep states reported in SweepStatus.State.
const (
	StateInactive = "inactive"
	StateIdle     = "idle"
	StateRunning  = "running"
	StatePaused   = "paused"
)

// FromSweepStatus converts the controller view to its API representation.
func FromSweepStatus(status sweep.Status) SweepStatus {
	dto := SweepStatus{
		Active:     status.Active,
		Running:    status.Running,
		State:      sweepState(status),
		WaitingFor: status.WaitingFor,
		RunID:      status.RunID,
	}
	if status.StartedAt != nil {
		dto.StartedAt = formatTime(*status.StartedAt)
	}
	if last := status.LastRun; last != nil {
		dto.LastRun = &LastRun{
			RunID:     last.RunID,
			Outcome:   last.Outcome,
			Steps:     last.Steps,
			Processed: last.Processed,
			Corrupted: last.Corrupted,
			Cancelled: last.Cancelled,
			Error:     last.Error,
			EndedAt:   formatTime(last.EndedAt),
		}
	}
	return dto
}

func sweepState(status sweep.Status) string {
	switch {
	case !status.Active:
		return StateInactive
	case status.Running:
		return StateRunning
	case status.WaitingFor != "":
		return StatePaused
	default:
		return StateIdle
	}
}

// FromSummary converts a ledger summary.
func FromSummary(summary ledger.Summary) LedgerSummary {
	return LedgerSummary{
		Total:        summary.Total,
		Verified:     summary.Verified,
		Corrupted:    summary.Corrupted,
		Pending:      summary.Pending,
		FirstAdded:   formatTime(summary.FirstAdded),
		LastVerified: formatTime(summary.LastVerified),
	}
}

// FromRecord converts one ledger record.
func FromRecord(record *ledger.Record) LedgerRecord {
	if record == nil {
		return LedgerRecord{}
	}
	dto := LedgerRecord{
		Seq:        record.Seq,
		Identifier: record.Identifier,
		AddedOn:    formatTime(record.AddedOn),
	}
	if record.VerifiedOn != nil {
		dto.VerifiedOn = formatTime(*record.VerifiedOn)
	}
	if record.Correct != nil {
		correct := *record.Correct
		dto.Correct = &correct
	}
	return dto
}

// FromRecords converts records preserving their order.
func FromRecords(records []*ledger.Record) []LedgerRecord {
	out := make([]LedgerRecord, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

// ParseTime reads a timestamp produced by the API. Empty input yields the
// zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
