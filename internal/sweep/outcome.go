package sweep

// Outcome is the result of one sweep step.
type Outcome int

const (
	// OutcomeProcessed means one object was checked and its verdict committed.
	OutcomeProcessed Outcome = iota + 1
	// OutcomePaused means the content store is still preparing the object.
	OutcomePaused
	// OutcomeFinished means the catalog has no identifiers past the cursor.
	OutcomeFinished
	// OutcomeFailed means the step rolled back; Err carries the cause.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomePaused:
		return "paused"
	case OutcomeFinished:
		return "finished"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult describes one ProcessOne call.
type StepResult struct {
	Outcome    Outcome
	Identifier string
	Corrupted  bool
	Err        error
}
