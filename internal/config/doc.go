// Package config loads, normalizes, and validates vigil configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIGIL_REMOTE_URL and VIGIL_CATALOG_DSN. The Config type centralizes every
// knob the daemon and CLI need, so the content store endpoint, catalog
// source, and activation schedule are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
