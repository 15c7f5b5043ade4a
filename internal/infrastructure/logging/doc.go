// Package logging provides structured logging for the 1-Wire bridge.
//
// It wraps the standard library's log/slog with configuration-driven setup
// (level, format, output) and default fields identifying the service.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("bridge started", "sensors", 12)
//
// Component loggers can be derived with With:
//
//	owLog := log.With("component", "owserver")
package logging
