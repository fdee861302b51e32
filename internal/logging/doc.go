// Package logging constructs the slog loggers used across RetroVue.
//
// It provides a console handler for interactive use (color when attached to
// a TTY), a JSON handler for log files, typed attribute helpers, and a nop
// logger for tests. Components receive a *slog.Logger and scope it with
// With(component) rather than creating their own.
package logging
