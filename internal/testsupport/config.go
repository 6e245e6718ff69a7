package testsupport

import (
	"path/filepath"
	"testing"

	"vigil/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Remote.BaseURL = "http://127.0.0.1:1/objects"
	cfgVal.Catalog.ManifestPath = filepath.Join(base, "catalog.yaml")
	cfgVal.Schedule.Enabled = false
	cfgVal.Notifications.KafkaTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemote points the content store client at baseURL.
func WithRemote(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = baseURL
	}
}

// WithNtfyTopic enables ntfy notifications against topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithAPIToken requires bearer auth on the control API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
