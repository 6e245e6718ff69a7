// Package sweep drives continuous integrity verification.
//
// Engine.ProcessOne is a single step: it reads the ledger cursor, advances it
// to the next catalog identifier when the cursor is already verified, fetches
// the object's archive, checks it, and records the verdict. All ledger writes
// of a step share one transaction, so a crash or failure never loses the
// verdicts of earlier objects. A 202 from the content store parks the sweep on
// that identifier and ends the continuation; the record stays unverified so
// the next continuation refetches the same object.
//
// Controller owns activation state and the continuation handle. At most one
// continuation runs at a time. NotifyObjectAvailable resumes a parked sweep
// when the content store reports the object ready; Start clears a stale wait
// and launches a fresh continuation from the ledger cursor.
//
// Failed steps end the continuation. There is no retry limit: the next Start
// (usually the retry schedule) picks up the same object again.
package sweep
