// Package config loads, normalizes, and validates corrflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CORRFLOW_JWT_SECRET. The Config type centralizes every knob the daemon and
// CLI need: the state directory holding the SQLite database, HTTP bind and
// token verification, workflow labels, the directory cache, side-effect
// workers, and notification routing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
