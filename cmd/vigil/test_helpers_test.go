package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vigil/internal/config"
	"vigil/internal/daemon"
	"vigil/internal/daemonrun"
	"vigil/internal/testsupport"
)

const testContent = "page one"

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	baseDir    string

	mu        sync.Mutex
	preparing map[string]bool
}

// setupCLITestEnv runs a daemon over a manifest catalog with the given
// identifiers, each served by a fake content store as a valid archive.
func setupCLITestEnv(t *testing.T, ids ...string) *cliTestEnv {
	t.Helper()

	archive := testsupport.ZipBytes(t, testsupport.ZipEntry{Name: "page.txt", Data: []byte(testContent)})
	env := &cliTestEnv{preparing: map[string]bool{}}
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.isPreparing(path.Base(r.URL.Path)) {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(remote.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithRemote(remote.URL+"/objects"))
	writeManifest(t, cfg.Catalog.ManifestPath, ids...)

	d, err := daemonrun.Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("daemonrun.Build: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	cfg.Paths.APIBind = d.APIAddress()
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env.cfg = cfg
	env.daemon = d
	env.configPath = configPath
	env.baseDir = testsupport.BaseDir(cfg)
	return env
}

// prepare makes the fake content store answer 202 for identifier.
func (e *cliTestEnv) prepare(identifier string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preparing[identifier] = true
}

func (e *cliTestEnv) isPreparing(identifier string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preparing[identifier]
}

func writeManifest(t *testing.T, path string, ids ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("objects:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "  - identifier: %s\n    files:\n      - path: page.txt\n        algorithm: sha256\n        digest: %s\n",
			id, testsupport.SHA256Hex([]byte(testContent)))
	}
	if len(ids) == 0 {
		b.Reset()
		b.WriteString("objects: []\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
