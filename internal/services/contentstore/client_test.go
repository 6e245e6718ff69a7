package contentstore_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/services"
	"vigil/internal/services/contentstore"
)

func TestFetchReadyReturnsBody(t *testing.T) {
	var gotPath, gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	client := contentstore.NewClient(config.Remote{
		BaseURL:   srv.URL + "/objects/",
		Token:     "secret",
		UserAgent: "vigil/test",
	}, srv.Client())

	resp, err := client.Fetch(context.Background(), "ark:/123 45")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Status != contentstore.StatusReady {
		t.Fatalf("expected ready, got %v", resp.Status)
	}
	path, written, err := resp.SaveTemp(t.TempDir(), "fetch-*.zip")
	if err != nil {
		t.Fatalf("SaveTemp failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if string(data) != "archive-bytes" || written != int64(len(data)) {
		t.Fatalf("unexpected download %q (%d)", data, written)
	}
	if gotPath != "/objects/ark:%2F123%2045" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotAgent != "vigil/test" {
		t.Fatalf("unexpected user agent %q", gotAgent)
	}
}

func TestFetchAcceptedMeansPreparing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := contentstore.NewClient(config.Remote{BaseURL: srv.URL}, srv.Client())
	resp, err := client.Fetch(context.Background(), "obj-a")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Status != contentstore.StatusPreparing || resp.Body != nil {
		t.Fatalf("expected preparing without body, got %#v", resp)
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   string
	}{
		{http.StatusNotFound, "external_service"},
		{http.StatusInternalServerError, "external_service"},
		{http.StatusNoContent, "external_service"},
		{http.StatusUnauthorized, "configuration"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := contentstore.NewClient(config.Remote{BaseURL: srv.URL}, srv.Client())
		_, err := client.Fetch(context.Background(), "obj-a")
		srv.Close()
		if !errors.Is(err, contentstore.ErrUnexpectedStatus) {
			t.Fatalf("status %d: expected ErrUnexpectedStatus, got %v", tc.status, err)
		}
		if kind := services.ErrorKind(err); kind != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.kind, kind)
		}
	}
}

func TestFetchBasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := contentstore.NewClient(config.Remote{BaseURL: srv.URL, Username: "svc", Password: "pw"}, srv.Client())
	if _, err := client.Fetch(context.Background(), "obj-a"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !ok || user != "svc" || pass != "pw" {
		t.Fatalf("unexpected basic auth %q/%q/%v", user, pass, ok)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := contentstore.NewClient(config.Remote{BaseURL: url}, nil)
	_, err := client.Fetch(context.Background(), "obj-a")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service marker, got %v", err)
	}
}

func TestNewConfiguredRejectsMissingCA(t *testing.T) {
	_, err := contentstore.NewConfigured(config.Remote{BaseURL: "https://store", CAFile: "/nonexistent/ca.pem", RequestTimeout: 5})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchSlowBodyOutlastsRequestTimeout(t *testing.T) {
	chunk := make([]byte, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			_, _ = w.Write(chunk)
			flusher.Flush()
			select {
			case <-time.After(600 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
	}))
	defer srv.Close()

	client, err := contentstore.NewConfigured(config.Remote{BaseURL: srv.URL, RequestTimeout: 1})
	if err != nil {
		t.Fatalf("NewConfigured failed: %v", err)
	}
	resp, err := client.Fetch(context.Background(), "obj-a")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_, written, err := resp.SaveTemp(t.TempDir(), "slow-*.zip")
	if err != nil {
		t.Fatalf("SaveTemp failed for a steadily streaming body: %v", err)
	}
	if written != 3*int64(len(chunk)) {
		t.Fatalf("expected %d bytes, got %d", 3*len(chunk), written)
	}
}

func TestFetchStalledBodyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, err := contentstore.NewConfigured(config.Remote{BaseURL: srv.URL, RequestTimeout: 1})
	if err != nil {
		t.Fatalf("NewConfigured failed: %v", err)
	}
	resp, err := client.Fetch(context.Background(), "obj-a")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	dir := t.TempDir()
	if _, _, err := resp.SaveTemp(dir, "stalled-*.zip"); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected idle deadline error, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no partial download left behind, got %d files", len(entries))
	}
}
