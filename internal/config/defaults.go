package config

const (
	defaultConfigPath           = "~/.config/vigil/config.toml"
	defaultStateDir             = "~/.local/share/vigil"
	defaultWorkDir              = "~/.local/share/vigil/work"
	defaultLogDir               = "~/.local/share/vigil/logs"
	defaultAPIBind              = "127.0.0.1:7497"
	defaultRemoteRequestTimeout = 300
	defaultRemoteUserAgent      = "vigil/dev"
	defaultCatalogDriver        = CatalogDriverManifest
	defaultManifestPath         = "~/.config/vigil/catalog.yaml"
	defaultScheduleActivate     = "0 22 * * *"
	defaultScheduleDeactivate   = "0 6 * * *"
	defaultScheduleRetry        = "*/15 * * * *"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultKafkaCorruptionTopic = "vigil.corruption"
	defaultTracingServiceName   = "vigil"
	defaultTracingSampleRatio   = 1.0
	envRemoteURL                = "VIGIL_REMOTE_URL"
	envRemoteToken              = "VIGIL_REMOTE_TOKEN"
	envAPIToken                 = "VIGIL_API_TOKEN"
	envCatalogDSN               = "VIGIL_CATALOG_DSN"
	envKafkaBrokers             = "VIGIL_KAFKA_BROKERS"
	envOTLPEndpoint             = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Supported catalog drivers.
const (
	CatalogDriverPostgres = "postgres"
	CatalogDriverSQLite   = "sqlite"
	CatalogDriverManifest = "manifest"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteRequestTimeout,
			UserAgent:      defaultRemoteUserAgent,
		},
		Catalog: Catalog{
			Driver:       defaultCatalogDriver,
			ManifestPath: defaultManifestPath,
		},
		Schedule: Schedule{
			Enabled:    true,
			Activate:   defaultScheduleActivate,
			Deactivate: defaultScheduleDeactivate,
			Retry:      defaultScheduleRetry,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			KafkaTopic:     defaultKafkaCorruptionTopic,
			Corruption:     true,
			SweepCompleted: true,
			Errors:         true,
		},
		Tracing: Tracing{
			SampleRatio: defaultTracingSampleRatio,
			ServiceName: defaultTracingServiceName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
