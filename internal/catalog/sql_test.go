package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"vigil/internal/catalog"
	"vigil/internal/config"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_objects (
    id BIGINT PRIMARY KEY,
    identifier TEXT NOT NULL UNIQUE,
    active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS catalog_file_hashes (
    identifier TEXT NOT NULL,
    path TEXT NOT NULL,
    algorithm TEXT NOT NULL,
    digest TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);
`

func openSQLiteCatalog(t *testing.T) (*sql.DB, *catalog.SQLCatalog) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.NewSQL(db, config.CatalogDriverSQLite)
	ctx := context.Background()
	for _, stmt := range strings.Split(catalogSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	seed := []string{
		`INSERT INTO catalog_objects (id, identifier, active) VALUES (10, 'obj-a', 1)`,
		`INSERT INTO catalog_objects (id, identifier, active) VALUES (20, 'obj-b', 0)`,
		`INSERT INTO catalog_objects (id, identifier, active) VALUES (30, 'obj-c', 1)`,
		`INSERT INTO catalog_file_hashes (identifier, path, algorithm, digest, position) VALUES ('obj-a', 'z.txt', 'sha256', 'aa', 0)`,
		`INSERT INTO catalog_file_hashes (identifier, path, algorithm, digest, position) VALUES ('obj-a', 'a.txt', 'md5', 'bb', 1)`,
	}
	for _, stmt := range seed {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return db, cat
}

func TestSQLCatalogEnumeratesByID(t *testing.T) {
	_, cat := openSQLiteCatalog(t)
	ctx := context.Background()

	cases := []struct {
		previous string
		want     string
		ok       bool
	}{
		{"", "obj-a", true},
		{"obj-a", "obj-c", true},
		{"obj-b", "obj-c", true},
		{"obj-c", "", false},
		{"unknown", "", false},
	}
	for _, tc := range cases {
		next, ok, err := cat.FindNextActiveIdentifier(ctx, tc.previous)
		if err != nil {
			t.Fatalf("FindNextActiveIdentifier(%q) failed: %v", tc.previous, err)
		}
		if next != tc.want || ok != tc.ok {
			t.Fatalf("after %q: got %q/%v, want %q/%v", tc.previous, next, ok, tc.want, tc.ok)
		}
	}
}

func TestSQLCatalogFileHashes(t *testing.T) {
	_, cat := openSQLiteCatalog(t)
	ctx := context.Background()

	files, err := cat.FileHashes(ctx, "obj-a")
	if err != nil {
		t.Fatalf("FileHashes failed: %v", err)
	}
	if len(files) != 2 || files[0].Path != "z.txt" || files[1].Algorithm != "md5" {
		t.Fatalf("unexpected files %#v", files)
	}

	files, err = cat.FileHashes(ctx, "obj-c")
	if err != nil {
		t.Fatalf("FileHashes for object without hashes failed: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %#v", files)
	}

	if _, err := cat.FileHashes(ctx, "missing"); !errors.Is(err, catalog.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	path := writeManifest(t, sampleManifest)

	cat, err := catalog.Open(ctx, config.Catalog{Driver: config.CatalogDriverManifest, ManifestPath: path})
	if err != nil {
		t.Fatalf("Open manifest failed: %v", err)
	}
	_ = cat.Close()

	dsn := filepath.Join(t.TempDir(), "catalog.db")
	cat, err = catalog.Open(ctx, config.Catalog{Driver: config.CatalogDriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	_ = cat.Close()

	if _, err := catalog.Open(ctx, config.Catalog{Driver: "oracle"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
