package contentstore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/services"
)

// ErrUnexpectedStatus marks a response that is neither ready nor preparing.
var ErrUnexpectedStatus = errors.New("unexpected content store status")

// Status classifies a fetch that the content store answered normally.
type Status int

const (
	// StatusReady means the archive body is attached to the response.
	StatusReady Status = iota + 1
	// StatusPreparing means the store accepted the request and is still
	// assembling the archive.
	StatusPreparing
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPreparing:
		return "preparing"
	default:
		return "unknown"
	}
}

// Response is the outcome of a fetch. Body is set only when Status is
// StatusReady and must be closed by the caller.
type Response struct {
	Status        Status
	Body          io.ReadCloser
	ContentLength int64
}

// Close releases the body when present.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Fetcher retrieves the packaged archive for an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (*Response, error)
}

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches archives with GET <base_url>/<identifier>.
type Client struct {
	baseURL   string
	token     string
	username  string
	password  string
	userAgent string
	idle      time.Duration
	client    HTTPDoer
}

// NewConfigured builds a client whose transport honours the TLS and timeout
// settings in cfg.
func NewConfigured(cfg config.Remote) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}
	// request_timeout bounds connecting and waiting for the reply headers.
	// The archive body is bounded by idle time instead, so a large archive
	// that keeps streaming is never cut off.
	if timeout := requestTimeout(cfg); timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}
	return NewClient(cfg, &http.Client{Transport: transport}), nil
}

// NewClient constructs a client over an arbitrary HTTPDoer.
func NewClient(cfg config.Remote, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:     strings.TrimSpace(cfg.Token),
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
		idle:      requestTimeout(cfg),
		client:    doer,
	}
}

// URLFor returns the archive URL for identifier.
func (c *Client) URLFor(identifier string) string {
	return c.baseURL + "/" + url.PathEscape(identifier)
}

// Fetch issues the GET and maps the status code. 200 carries the archive,
// 202 means preparing, and anything else is an error marked
// services.ErrExternalService.
func (c *Client) Fetch(ctx context.Context, identifier string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLFor(identifier), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "contentstore", "build request", identifier, err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		marker := services.ErrExternalService
		if isTimeout(err) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "contentstore", "fetch", identifier, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &Response{Status: StatusReady, Body: newIdleBody(resp.Body, c.idle), ContentLength: resp.ContentLength}, nil
	case http.StatusAccepted:
		drainAndClose(resp.Body)
		return &Response{Status: StatusPreparing}, nil
	default:
		snippet := readSnippet(resp.Body)
		drainAndClose(resp.Body)
		msg := fmt.Sprintf("%s returned %d", identifier, resp.StatusCode)
		if snippet != "" {
			msg += ": " + snippet
		}
		marker := services.ErrExternalService
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrConfiguration
		}
		return nil, services.Wrap(marker, "contentstore", "fetch", msg, ErrUnexpectedStatus)
	}
}

// Probe issues an authenticated GET against the base URL and returns the
// status code. Any status proves the store is reachable; 401 and 403 mean the
// credentials were refused.
func (c *Client) Probe(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "contentstore", "build request", c.baseURL, err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		marker := services.ErrExternalService
		if isTimeout(err) {
			marker = services.ErrTimeout
		}
		return 0, services.Wrap(marker, "contentstore", "probe", c.baseURL, err)
	}
	drainAndClose(resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func requestTimeout(cfg config.Remote) time.Duration {
	if cfg.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(cfg.RequestTimeout) * time.Second
}

func buildTLSConfig(cfg config.Remote) (*tls.Config, error) {
	if cfg.ClientCert == "" && cfg.CAFile == "" {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "contentstore", "load client certificate", cfg.ClientCert, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "contentstore", "read ca file", cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, services.Wrap(services.ErrConfiguration, "contentstore", "parse ca file", cfg.CAFile, nil)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func readSnippet(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 256))
	return strings.TrimSpace(string(data))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
