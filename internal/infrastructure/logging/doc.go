// Package logging provides structured logging for mqttwaker.
//
// It wraps log/slog with JSON output for daemons run under a service
// manager and text output for interactive use. Every entry carries the
// service name and build version.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log the broker password.
package logging
