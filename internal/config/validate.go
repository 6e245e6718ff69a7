package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("remote.base_url is required. Set %s or edit %s (create with 'vigil config init')", envRemoteURL, defaultPath)
	}
	parsed, err := url.Parse(c.Remote.BaseURL)
	if err != nil {
		return fmt.Errorf("remote.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("remote.base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("remote.base_url must include a host")
	}
	if c.Remote.RequestTimeout <= 0 {
		return errors.New("remote.request_timeout must be positive (seconds)")
	}
	if (c.Remote.ClientCert == "") != (c.Remote.ClientKey == "") {
		return errors.New("remote.client_cert and remote.client_key must be set together")
	}
	if c.Remote.Password != "" && c.Remote.Username == "" {
		return errors.New("remote.username must be set when remote.password is set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Driver {
	case CatalogDriverPostgres, CatalogDriverSQLite:
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn must be set when catalog.driver is %q (or set %s)", c.Catalog.Driver, envCatalogDSN)
		}
	case CatalogDriverManifest:
		if c.Catalog.ManifestPath == "" {
			return errors.New("catalog.manifest_path must be set when catalog.driver is \"manifest\"")
		}
	default:
		return fmt.Errorf("catalog.driver: unsupported value %q", c.Catalog.Driver)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if !c.Schedule.Enabled {
		return nil
	}
	if !c.Schedule.AlwaysActive && c.Schedule.Activate == "" {
		return errors.New("schedule.activate must be set unless schedule.always_active is true")
	}
	for key, expr := range map[string]string{
		"schedule.activate":   c.Schedule.Activate,
		"schedule.deactivate": c.Schedule.Deactivate,
		"schedule.retry":      c.Schedule.Retry,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s: invalid cron expression %q: %w", key, expr, err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.NtfyTopic != "" && !strings.HasPrefix(c.Notifications.NtfyTopic, "http") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	if len(c.Notifications.KafkaBrokers) > 0 && c.Notifications.KafkaTopic == "" {
		return errors.New("notifications.kafka_topic must be set when notifications.kafka_brokers is set")
	}
	return nil
}
