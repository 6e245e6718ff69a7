package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vigil/internal/config"
)

// ErrObjectNotFound reports a hash lookup for an identifier the catalog does
// not know.
var ErrObjectNotFound = errors.New("catalog object not found")

// ExpectedFile is one catalogued digest for a path inside an object's archive.
type ExpectedFile struct {
	Identifier string `json:"identifier" yaml:"-"`
	Path       string `json:"path" yaml:"path"`
	Algorithm  string `json:"algorithm" yaml:"algorithm"`
	Digest     string `json:"digest" yaml:"digest"`
}

// IdentifierCatalog enumerates active objects in a stable order.
type IdentifierCatalog interface {
	// FindNextActiveIdentifier returns the first active identifier strictly
	// after previous. An empty previous asks for the first one. ok is false
	// when the enumeration is exhausted.
	FindNextActiveIdentifier(ctx context.Context, previous string) (next string, ok bool, err error)
}

// HashCatalog returns the expected digests for an object's current content.
type HashCatalog interface {
	FileHashes(ctx context.Context, identifier string) ([]ExpectedFile, error)
}

// Catalog is the combined view the sweep needs, plus a way to release it.
type Catalog interface {
	IdentifierCatalog
	HashCatalog
	Close() error
}

// Open builds the catalog adapter selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Catalog) (Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.CatalogDriverManifest:
		return OpenManifest(cfg.ManifestPath)
	case config.CatalogDriverPostgres, config.CatalogDriverSQLite:
		return OpenSQL(ctx, cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}
}

func notFound(identifier string) error {
	return fmt.Errorf("%w: %s", ErrObjectNotFound, identifier)
}
