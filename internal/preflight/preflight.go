package preflight

import (
	"context"

	"vigil/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for cfg: writable state and work
// directories, a reachable content store, a readable catalog and an openable
// ledger.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckContentStore(ctx, cfg.Remote),
		CheckCatalog(ctx, cfg.Catalog),
		CheckLedger(ctx, cfg.LedgerPath()),
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
