package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/internal/config"
)

// Manifest is the YAML document read by ManifestCatalog.
//
//	objects:
//	  - identifier: obj-1
//	    files:
//	      - path: data/page-001.tif
//	        algorithm: sha256
//	        digest: 9f86d08...
type Manifest struct {
	Objects []ManifestObject `yaml:"objects"`
}

// ManifestObject is one catalogued object. Active defaults to true.
type ManifestObject struct {
	Identifier string         `yaml:"identifier"`
	Active     *bool          `yaml:"active,omitempty"`
	Files      []ExpectedFile `yaml:"files"`
}

func (o ManifestObject) active() bool {
	return o.Active == nil || *o.Active
}

// ManifestCatalog serves the catalog from a YAML file. Objects enumerate in
// file order. The file is re-read whenever its modification time changes.
type ManifestCatalog struct {
	path string

	mu       sync.Mutex
	modTime  time.Time
	objects  []ManifestObject
	position map[string]int
}

// OpenManifest loads the manifest at path.
func OpenManifest(path string) (*ManifestCatalog, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	c := &ManifestCatalog{path: expanded}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reloadLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindNextActiveIdentifier implements IdentifierCatalog.
func (c *ManifestCatalog) FindNextActiveIdentifier(_ context.Context, previous string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(); err != nil {
		return "", false, err
	}

	start := 0
	if previous != "" {
		idx, ok := c.position[previous]
		if !ok {
			return "", false, nil
		}
		start = idx + 1
	}
	for _, obj := range c.objects[start:] {
		if obj.active() {
			return obj.Identifier, true, nil
		}
	}
	return "", false, nil
}

// FileHashes implements HashCatalog.
func (c *ManifestCatalog) FileHashes(_ context.Context, identifier string) ([]ExpectedFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(); err != nil {
		return nil, err
	}

	idx, ok := c.position[identifier]
	if !ok {
		return nil, notFound(identifier)
	}
	files := make([]ExpectedFile, len(c.objects[idx].Files))
	for i, file := range c.objects[idx].Files {
		file.Identifier = identifier
		files[i] = file
	}
	return files, nil
}

// Close implements Catalog.
func (c *ManifestCatalog) Close() error {
	return nil
}

func (c *ManifestCatalog) refreshLocked() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat catalog manifest: %w", err)
	}
	if info.ModTime().Equal(c.modTime) {
		return nil
	}
	return c.reloadLocked()
}

func (c *ManifestCatalog) reloadLocked() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat catalog manifest: %w", err)
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return err
	}
	position := make(map[string]int, len(manifest.Objects))
	for i, obj := range manifest.Objects {
		position[obj.Identifier] = i
	}
	c.objects = manifest.Objects
	c.position = position
	c.modTime = info.ModTime()
	return nil
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse catalog manifest: %w", err)
	}
	seen := make(map[string]struct{}, len(manifest.Objects))
	for i, obj := range manifest.Objects {
		id := strings.TrimSpace(obj.Identifier)
		if id == "" {
			return Manifest{}, fmt.Errorf("catalog manifest: object %d has no identifier", i)
		}
		if _, dup := seen[id]; dup {
			return Manifest{}, fmt.Errorf("catalog manifest: duplicate identifier %q", id)
		}
		seen[id] = struct{}{}
		for _, file := range obj.Files {
			if strings.TrimSpace(file.Path) == "" || strings.TrimSpace(file.Algorithm) == "" || strings.TrimSpace(file.Digest) == "" {
				return Manifest{}, errors.New("catalog manifest: " + id + ": file entries need path, algorithm and digest")
			}
		}
		manifest.Objects[i].Identifier = id
	}
	return manifest, nil
}
