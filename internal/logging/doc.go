// Package logging assembles structured slog loggers and formatting helpers
// used across cliptube services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can automatically
// tag log lines with queue job IDs, stages, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// The daemon writes one log file per calendar day (cliptubed_YYYYMMDD.log);
// CleanupOldLogs prunes files past the configured retention window.
package logging
