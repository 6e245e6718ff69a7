package integrity

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vigil/internal/catalog"
	"vigil/internal/logging"
	"vigil/internal/services"
)

var (
	// ErrArchiveFormat reports a downloaded file that is not a readable zip archive.
	ErrArchiveFormat = errors.New("invalid archive")
	// ErrHashAlgorithm reports a catalog entry naming an unsupported digest.
	ErrHashAlgorithm = errors.New("unsupported hash algorithm")
	// ErrCatalogLookup reports a failed expected-digest lookup.
	ErrCatalogLookup = errors.New("catalog lookup failed")
)

const hashBufferSize = 32 * 1024

// Reason explains a corrupted verdict.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonMissing  Reason = "missing"
	ReasonMismatch Reason = "mismatch"
)

// Report is the detailed verdict for one archive.
type Report struct {
	Identifier string `json:"identifier"`
	Corrupted  bool   `json:"corrupted"`
	Reason     Reason `json:"reason,omitempty"`
	Path       string `json:"path,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Checked    int    `json:"checked"`
}

// Checker compares archive contents against catalogued digests.
type Checker struct {
	hashes catalog.HashCatalog
	logger *slog.Logger
}

// NewChecker constructs a checker backed by hashes.
func NewChecker(hashes catalog.HashCatalog, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{hashes: hashes, logger: logger.With(logging.String(logging.FieldComponent, "integrity"))}
}

// IsCorrupted reports whether the archive at archivePath disagrees with the
// catalog for identifier.
func (c *Checker) IsCorrupted(ctx context.Context, identifier, archivePath string) (bool, error) {
	report, err := c.Check(ctx, identifier, archivePath)
	if err != nil {
		return false, err
	}
	return report.Corrupted, nil
}

// Check walks the expected files in catalog order and stops at the first
// missing entry or digest mismatch.
func (c *Checker) Check(ctx context.Context, identifier, archivePath string) (Report, error) {
	report := Report{Identifier: identifier}

	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return report, services.Wrap(services.ErrValidation, "integrity", "open archive", identifier, fmt.Errorf("%w: %w", ErrArchiveFormat, err))
	}
	defer archive.Close()

	expected, err := c.hashes.FileHashes(ctx, identifier)
	if err != nil {
		marker := services.ErrExternalService
		if errors.Is(err, catalog.ErrObjectNotFound) {
			marker = services.ErrNotFound
		}
		return report, services.Wrap(marker, "integrity", "lookup hashes", identifier, fmt.Errorf("%w: %w", ErrCatalogLookup, err))
	}

	entries := indexEntries(archive.File)
	for _, want := range expected {
		entry, ok := entries[normalizeEntryPath(want.Path)]
		if !ok {
			report.Corrupted = true
			report.Reason = ReasonMissing
			report.Path = want.Path
			c.logger.Debug("catalogued file missing from archive",
				logging.String(logging.FieldIdentifier, identifier),
				logging.String("path", want.Path),
			)
			return report, nil
		}

		actual, err := digestEntry(entry, want.Algorithm)
		if errors.Is(err, zip.ErrChecksum) {
			report.Corrupted = true
			report.Reason = ReasonMismatch
			report.Path = want.Path
			report.Algorithm = want.Algorithm
			return report, nil
		}
		if err != nil {
			return report, wrapDigestError(identifier, want.Path, err)
		}
		report.Checked++
		if !strings.EqualFold(actual, strings.TrimSpace(want.Digest)) {
			report.Corrupted = true
			report.Reason = ReasonMismatch
			report.Path = want.Path
			report.Algorithm = want.Algorithm
			report.Expected = want.Digest
			report.Actual = actual
			c.logger.Debug("digest mismatch",
				logging.String(logging.FieldIdentifier, identifier),
				logging.String("path", want.Path),
				logging.String("algorithm", want.Algorithm),
			)
			return report, nil
		}
	}
	return report, nil
}

func wrapDigestError(identifier, path string, err error) error {
	if errors.Is(err, ErrHashAlgorithm) {
		return services.Wrap(services.ErrConfiguration, "integrity", "hash entry", identifier+": "+path, err)
	}
	return services.Wrap(services.ErrValidation, "integrity", "hash entry", identifier+": "+path, fmt.Errorf("%w: %w", ErrArchiveFormat, err))
}

// indexEntries maps normalized names to entries. The first occurrence of a
// duplicated name wins.
func indexEntries(files []*zip.File) map[string]*zip.File {
	entries := make(map[string]*zip.File, len(files))
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizeEntryPath(f.Name)
		if _, exists := entries[name]; !exists {
			entries[name] = f
		}
	}
	return entries
}

func normalizeEntryPath(path string) string {
	return strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "/")
}

func digestEntry(entry *zip.File, algorithm string) (string, error) {
	h, ok := NewHash(algorithm)
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrHashAlgorithm, algorithm, strings.Join(supportedAlgorithms(), ", "))
	}
	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	if _, err := io.CopyBuffer(h, rc, make([]byte, hashBufferSize)); err != nil {
		return "", fmt.Errorf("read entry %s: %w", entry.Name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
