// Package config loads, normalizes, and validates baton configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the BATON_* environment overrides
// for payload ceilings, validation and monitoring toggles, operation timeouts,
// and retry counts. Every value is read once at process start; the resulting
// Config is passed explicitly to the components that need it.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
