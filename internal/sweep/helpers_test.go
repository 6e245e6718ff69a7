package sweep_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"vigil/internal/catalog"
	"vigil/internal/integrity"
	"vigil/internal/ledger"
	"vigil/internal/notifications"
	"vigil/internal/services"
	"vigil/internal/services/contentstore"
	"vigil/internal/sweep"
	"vigil/internal/testsupport"
)

type fakeCatalog struct {
	ids    []string
	hashes map[string][]catalog.ExpectedFile
}

func (c *fakeCatalog) FindNextActiveIdentifier(_ context.Context, previous string) (string, bool, error) {
	if previous == "" {
		if len(c.ids) == 0 {
			return "", false, nil
		}
		return c.ids[0], true, nil
	}
	for i, id := range c.ids {
		if id == previous && i+1 < len(c.ids) {
			return c.ids[i+1], true, nil
		}
	}
	return "", false, nil
}

func (c *fakeCatalog) FileHashes(_ context.Context, identifier string) ([]catalog.ExpectedFile, error) {
	files, ok := c.hashes[identifier]
	if !ok {
		return nil, catalog.ErrObjectNotFound
	}
	return files, nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	archives  map[string][]byte
	preparing map[string]int
	fail      map[string]error
	calls     []string
	block     chan struct{}
	entered   chan string
}

func (f *fakeFetcher) Fetch(ctx context.Context, identifier string) (*contentstore.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, identifier)
	block := f.block
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- identifier:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[identifier]; err != nil {
		return nil, err
	}
	if f.preparing[identifier] > 0 {
		f.preparing[identifier]--
		return &contentstore.Response{Status: contentstore.StatusPreparing}, nil
	}
	data, ok := f.archives[identifier]
	if !ok {
		return nil, services.Wrap(services.ErrExternalService, "contentstore", "fetch", identifier+" returned 404", contentstore.ErrUnexpectedStatus)
	}
	return &contentstore.Response{
		Status:        contentstore.StatusReady,
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
	}, nil
}

func (f *fakeFetcher) callsFor(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == identifier {
			n++
		}
	}
	return n
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

// recordingNotifier keeps every published event and returns err, if set,
// after recording it.
type recordingNotifier struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return r.err
}

func (r *recordingNotifier) byEvent(event notifications.Event) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, p := range r.events {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

type fixture struct {
	store    *ledger.Store
	catalog  *fakeCatalog
	fetcher  *fakeFetcher
	notifier *recordingNotifier
	engine   *sweep.Engine
	deps     sweep.Dependencies
	workDir  string
}

// newFixture builds an engine whose catalog lists ids in order. Every object
// holds one file "f.txt" whose content is "content-<id>" and whose catalogued
// SHA-256 matches it.
func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	cat := &fakeCatalog{ids: ids, hashes: map[string][]catalog.ExpectedFile{}}
	fetcher := &fakeFetcher{
		archives:  map[string][]byte{},
		preparing: map[string]int{},
		fail:      map[string]error{},
	}
	for _, id := range ids {
		content := []byte("content-" + id)
		cat.hashes[id] = []catalog.ExpectedFile{{Identifier: id, Path: "f.txt", Algorithm: "sha256", Digest: testsupport.SHA256Hex(content)}}
		fetcher.archives[id] = testsupport.ZipBytes(t, testsupport.ZipEntry{Name: "f.txt", Data: content})
	}

	notifier := &recordingNotifier{}
	deps := sweep.Dependencies{
		Ledger:   store,
		Catalog:  cat,
		Fetcher:  fetcher,
		Checker:  integrity.NewChecker(cat, nil),
		Notifier: notifier,
		WorkDir:  cfg.Paths.WorkDir,
	}
	engine, err := sweep.NewEngine(deps)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return &fixture{
		store:    store,
		catalog:  cat,
		fetcher:  fetcher,
		notifier: notifier,
		engine:   engine,
		deps:     deps,
		workDir:  cfg.Paths.WorkDir,
	}
}

// rebuild replaces the engine with one built from the fixture's
// dependencies after mutate has adjusted them.
func (f *fixture) rebuild(t *testing.T, mutate func(*sweep.Dependencies)) {
	t.Helper()
	deps := f.deps
	mutate(&deps)
	engine, err := sweep.NewEngine(deps)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	f.engine = engine
	f.deps = deps
}

// corrupt replaces the archive for id with one whose f.txt no longer matches.
func (f *fixture) corrupt(t *testing.T, id string) {
	t.Helper()
	f.fetcher.mu.Lock()
	defer f.fetcher.mu.Unlock()
	f.fetcher.archives[id] = testsupport.ZipBytes(t, testsupport.ZipEntry{Name: "f.txt", Data: []byte("bit rot")})
}

func (f *fixture) record(t *testing.T, id string) *ledger.Record {
	t.Helper()
	record, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", id, err)
	}
	return record
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var errBoom = errors.New("boom")
