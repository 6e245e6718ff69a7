package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Remote describes the content store that serves packaged object archives.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	ClientCert     string `toml:"client_cert"`
	ClientKey      string `toml:"client_key"`
	CAFile         string `toml:"ca_file"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Catalog selects where active identifiers and expected file digests come from.
type Catalog struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	ManifestPath string `toml:"manifest_path"`
}

// Schedule controls when the sweep is active and how often it is kicked.
type Schedule struct {
	Enabled      bool   `toml:"enabled"`
	AlwaysActive bool   `toml:"always_active"`
	Activate     string `toml:"activate"`
	Deactivate   string `toml:"deactivate"`
	Retry        string `toml:"retry"`
}

// Notifications contains configuration for corruption and sweep alerts.
type Notifications struct {
	NtfyTopic      string   `toml:"ntfy_topic"`
	RequestTimeout int      `toml:"request_timeout"`
	KafkaBrokers   []string `toml:"kafka_brokers"`
	KafkaTopic     string   `toml:"kafka_topic"`
	Corruption     bool     `toml:"corruption"`
	SweepCompleted bool     `toml:"sweep_completed"`
	Errors         bool     `toml:"errors"`
}

// Tracing configures OpenTelemetry span export. An empty OTLPEndpoint keeps
// tracing disabled.
type Tracing struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	Insecure     bool    `toml:"insecure"`
	SampleRatio  float64 `toml:"sample_ratio"`
	ServiceName  string  `toml:"service_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vigil.
//
// Configuration sections by subsystem:
//   - Paths: state, scratch, and log directories plus the control API bind
//   - Remote: content store endpoint and credentials
//   - Catalog: identifier and digest source
//   - Schedule: activation windows and retry cadence
//   - Notifications: ntfy and Kafka alert sinks
//   - Tracing: OTLP span export
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Catalog       Catalog       `toml:"catalog"`
	Schedule      Schedule      `toml:"schedule"`
	Notifications Notifications `toml:"notifications"`
	Tracing       Tracing       `toml:"tracing"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vigil.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite file holding sweep progress.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LogPath returns the daemon's log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "vigil.log")
}

// LockPath returns the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vigil.lock")
}

// RemoteTimeout returns the per-request timeout for content fetches.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.RequestTimeout) * time.Second
}

// NotificationTimeout returns the per-request timeout for notification sinks.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
