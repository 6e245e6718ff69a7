// Package catalog adapts external object catalogs to the two lookups the sweep
// needs: the next active identifier after a cursor, and the expected digests
// for one object.
//
// SQLCatalog reads PostgreSQL (lib/pq) or SQLite tables; ManifestCatalog reads
// a YAML file for small deployments and tests.
package catalog
