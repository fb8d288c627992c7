// Package config loads, normalizes, and validates cliptube configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads the JSON settings file. The Config type centralizes
// every knob the daemon and CLI need, from output directories and quality
// selection to polling intervals and the retry ceiling.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical quality values, and clear validation errors.
package config
