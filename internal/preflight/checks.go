package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"vigil/internal/catalog"
	"vigil/internal/config"
	"vigil/internal/ledger"
	"vigil/internal/services"
	"vigil/internal/services/contentstore"
)

const probeTimeout = 10 * time.Second

// CheckContentStore verifies the content store answers at remote.base_url and
// accepts the configured credentials. A 404 on the base URL still counts as
// reachable; only refused credentials and transport errors fail.
func CheckContentStore(ctx context.Context, cfg config.Remote) Result {
	const name = "Content store"

	client, err := contentstore.NewConfigured(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("client setup failed (%v)", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := client.Probe(checkCtx)
	if err != nil {
		if errors.Is(err, services.ErrTimeout) {
			return Result{Name: name, Detail: fmt.Sprintf("%s timed out", cfg.BaseURL)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", cfg.BaseURL, err)}
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("auth failed (%d)", status)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", cfg.BaseURL, status)}
	}
}

// CheckCatalog opens the configured catalog and asks it for the first active
// identifier.
func CheckCatalog(ctx context.Context, cfg config.Catalog) Result {
	name := "Catalog (" + cfg.Driver + ")"

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cat, err := catalog.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer cat.Close()

	first, ok, err := cat.FindNextActiveIdentifier(checkCtx, "")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("query failed (%v)", err)}
	}
	if !ok {
		return Result{Name: name, Passed: true, Detail: "readable, no active objects"}
	}
	return Result{Name: name, Passed: true, Detail: "readable, first object " + first}
}

// CheckLedger opens the ledger at path, applying migrations, and reports the
// live sweep's size.
func CheckLedger(ctx context.Context, path string) Result {
	const name = "Ledger"

	store, err := ledger.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	summary, err := store.Summary(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if summary.Total == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (no sweep in progress)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d records, %d pending)", path, summary.Total, summary.Pending)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
