package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SweepStatus summarizes the controller state.
type SweepStatus struct {
	Active     bool     `json:"active"`
	Running    bool     `json:"running"`
	State      string   `json:"state"`
	WaitingFor string   `json:"waitingFor,omitempty"`
	RunID      string   `json:"runId,omitempty"`
	StartedAt  string   `json:"startedAt,omitempty"`
	LastRun    *LastRun `json:"lastRun,omitempty"`
}

// LastRun describes the most recent continuation to return.
type LastRun struct {
	RunID     string `json:"runId"`
	Outcome   string `json:"outcome"`
	Steps     int    `json:"steps"`
	Processed int    `json:"processed"`
	Corrupted int    `json:"corrupted"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error,omitempty"`
	EndedAt   string `json:"endedAt,omitempty"`
}

// LedgerSummary aggregates the records of the live sweep.
type LedgerSummary struct {
	Total        int    `json:"total"`
	Verified     int    `json:"verified"`
	Corrupted    int    `json:"corrupted"`
	Pending      int    `json:"pending"`
	FirstAdded   string `json:"firstAdded,omitempty"`
	LastVerified string `json:"lastVerified,omitempty"`
}

// LedgerRecord is one verification record in transport form. Correct is nil
// until the object has been checked.
type LedgerRecord struct {
	Seq        int64  `json:"seq"`
	Identifier string `json:"identifier"`
	AddedOn    string `json:"addedOn"`
	VerifiedOn string `json:"verifiedOn,omitempty"`
	Correct    *bool  `json:"correct,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	LedgerPath   string        `json:"ledgerPath"`
	LockFilePath string        `json:"lockFilePath"`
	Sweep        SweepStatus   `json:"sweep"`
	Ledger       LedgerSummary `json:"ledger"`
	NextRuns     []string      `json:"nextRuns,omitempty"`
}

// LedgerResponse wraps the records of the live sweep.
type LedgerResponse struct {
	Records []LedgerRecord `json:"records"`
	Summary LedgerSummary  `json:"summary"`
}

// ActionResponse reports the result of a control command. Changed is false
// when the command was accepted but had no effect.
type ActionResponse struct {
	Action  string      `json:"action"`
	Changed bool        `json:"changed"`
	Message string      `json:"message,omitempty"`
	Sweep   SweepStatus `json:"sweep"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
