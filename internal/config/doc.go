// Package config loads, normalizes, and validates RetroVue configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the daemon and
// CLI need: data/log directories, horizon windows, runtime timeouts,
// fallback policy, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
