package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"vigil/internal/config"
)

// SQLCatalog reads identifiers and digests from a relational catalog.
//
// Objects are enumerated by ascending id among rows with active set. Hashes
// come back in position order.
type SQLCatalog struct {
	db     *sql.DB
	driver string
	owned  bool
}

// OpenSQL connects to a PostgreSQL or SQLite catalog.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLCatalog, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("catalog dsn is required")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	catalog := NewSQL(db, driver)
	catalog.owned = true
	return catalog, nil
}

// NewSQL wraps an existing connection. The caller keeps ownership of db.
func NewSQL(db *sql.DB, driver string) *SQLCatalog {
	return &SQLCatalog{db: db, driver: strings.ToLower(strings.TrimSpace(driver))}
}

// FindNextActiveIdentifier implements IdentifierCatalog.
func (c *SQLCatalog) FindNextActiveIdentifier(ctx context.Context, previous string) (string, bool, error) {
	var row *sql.Row
	if previous == "" {
		row = c.db.QueryRowContext(ctx, `SELECT identifier FROM catalog_objects WHERE active ORDER BY id LIMIT 1`)
	} else {
		row = c.db.QueryRowContext(ctx, c.rebind(`SELECT identifier FROM catalog_objects
            WHERE active AND id > (SELECT id FROM catalog_objects WHERE identifier = ?)
            ORDER BY id LIMIT 1`), previous)
	}
	var next string
	if err := row.Scan(&next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("find next identifier: %w", err)
	}
	return next, true, nil
}

// FileHashes implements HashCatalog.
func (c *SQLCatalog) FileHashes(ctx context.Context, identifier string) ([]ExpectedFile, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, c.rebind(`SELECT COUNT(1) FROM catalog_objects WHERE identifier = ?`), identifier).Scan(&count); err != nil {
		return nil, fmt.Errorf("lookup object %s: %w", identifier, err)
	}
	if count == 0 {
		return nil, notFound(identifier)
	}

	rows, err := c.db.QueryContext(ctx, c.rebind(`SELECT path, algorithm, digest FROM catalog_file_hashes
        WHERE identifier = ? ORDER BY position, path`), identifier)
	if err != nil {
		return nil, fmt.Errorf("list hashes for %s: %w", identifier, err)
	}
	defer rows.Close()

	var files []ExpectedFile
	for rows.Next() {
		file := ExpectedFile{Identifier: identifier}
		if err := rows.Scan(&file.Path, &file.Algorithm, &file.Digest); err != nil {
			return nil, fmt.Errorf("scan hash for %s: %w", identifier, err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hashes for %s: %w", identifier, err)
	}
	return files, nil
}

// Close releases the connection when OpenSQL created it.
func (c *SQLCatalog) Close() error {
	if c == nil || c.db == nil || !c.owned {
		return nil
	}
	return c.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *SQLCatalog) rebind(query string) string {
	if c.driver != config.CatalogDriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqlDriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.CatalogDriverPostgres:
		return "postgres", nil
	case config.CatalogDriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sql catalog driver %q", driver)
	}
}
