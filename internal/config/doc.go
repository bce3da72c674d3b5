// Package config loads, normalizes, and validates Folio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays FOLIO_* environment variables.
// The Config type centralizes every knob the daemon and CLI need, from the
// library directory to per-job chunk sizes and the job lock backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
