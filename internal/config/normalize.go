package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeSchedule()
	c.normalizeNotifications()
	c.normalizeTracing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	if c.Remote.BaseURL == "" {
		if value, ok := os.LookupEnv(envRemoteURL); ok {
			c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Remote.Token = strings.TrimSpace(c.Remote.Token)
	if c.Remote.Token == "" {
		if value, ok := os.LookupEnv(envRemoteToken); ok {
			c.Remote.Token = strings.TrimSpace(value)
		}
	}
	c.Remote.Username = strings.TrimSpace(c.Remote.Username)
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultRemoteUserAgent
	}
	for _, field := range []*string{&c.Remote.ClientCert, &c.Remote.ClientKey, &c.Remote.CAFile} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		if expanded, err := expandPath(trimmed); err == nil {
			*field = expanded
		}
	}
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Driver = strings.ToLower(strings.TrimSpace(c.Catalog.Driver))
	switch c.Catalog.Driver {
	case "":
		c.Catalog.Driver = defaultCatalogDriver
	case "postgresql", "pg":
		c.Catalog.Driver = CatalogDriverPostgres
	case "sqlite3":
		c.Catalog.Driver = CatalogDriverSQLite
	case "yaml":
		c.Catalog.Driver = CatalogDriverManifest
	}
	c.Catalog.DSN = strings.TrimSpace(c.Catalog.DSN)
	if c.Catalog.DSN == "" {
		if value, ok := os.LookupEnv(envCatalogDSN); ok {
			c.Catalog.DSN = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Catalog.ManifestPath, err = expandPath(strings.TrimSpace(c.Catalog.ManifestPath)); err != nil {
		return fmt.Errorf("catalog.manifest_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSchedule() {
	c.Schedule.Activate = strings.TrimSpace(c.Schedule.Activate)
	c.Schedule.Deactivate = strings.TrimSpace(c.Schedule.Deactivate)
	c.Schedule.Retry = strings.TrimSpace(c.Schedule.Retry)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.KafkaTopic = strings.TrimSpace(c.Notifications.KafkaTopic)
	if len(c.Notifications.KafkaBrokers) == 0 {
		if value, ok := os.LookupEnv(envKafkaBrokers); ok {
			c.Notifications.KafkaBrokers = strings.Split(value, ",")
		}
	}
	brokers := make([]string, 0, len(c.Notifications.KafkaBrokers))
	for _, broker := range c.Notifications.KafkaBrokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Notifications.KafkaBrokers = brokers
	if len(brokers) > 0 && c.Notifications.KafkaTopic == "" {
		c.Notifications.KafkaTopic = defaultKafkaCorruptionTopic
	}
}

func (c *Config) normalizeTracing() {
	c.Tracing.OTLPEndpoint = strings.TrimSpace(c.Tracing.OTLPEndpoint)
	if c.Tracing.OTLPEndpoint == "" {
		if value, ok := os.LookupEnv(envOTLPEndpoint); ok {
			c.Tracing.OTLPEndpoint = strings.TrimSpace(value)
		}
	}
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
