// Package logging provides structured logging for glscript.
//
// It wraps log/slog so every record carries the service name and version.
// Output is JSON by default; format "text" forces the human-readable
// handler and "auto" chooses text only when writing to a terminal.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "auto"     # auto, json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("scripts loaded", "modules", 4)
//
// Script log.* calls reach this logger with a "func" attribute naming the
// script function that logged.
package logging
