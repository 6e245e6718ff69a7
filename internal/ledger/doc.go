// Package ledger persists sweep progress in SQLite.
//
// The ledger holds exactly one live sweep: an ordered list of records, one per
// catalog identifier the sweep has reached. The last record is the cursor. An
// unverified last record marks an object whose check was interrupted or is
// waiting on the content store; a verified last record means the next step
// advances to the following catalog identifier.
//
// Every sweep step runs inside Store.WithTx so the insert of a new record and
// its verification commit together or not at all. Finish summarizes and
// truncates the ledger atomically when the catalog is exhausted.
//
// Schema changes ship as numbered files under migrations/ and are applied in
// order on open.
package ledger
