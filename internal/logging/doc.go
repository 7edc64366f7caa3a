// Package logging assembles structured slog loggers and formatting helpers used
// across quire.
//
// It owns the console/JSON handlers, mirrors console output into a JSON log
// file, and exposes context-aware helpers so pipeline code can tag log lines
// with run IDs, edition slugs, and stages. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
