// Package logging provides structured logging for hostbridge.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Bridge components log handle lifecycles (start,
// supersession, cancellation, delivery) so that a host can reconstruct what
// happened to a call after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (component, handle ID, endpoint)
//   - Log rotation with configurable size limits
//   - Optional gzip compression for rotated logs
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("bridge started", "endpoint", url)
//
// # Context Propagation
//
//	runnerLogger := logger.WithComponent("runner").WithHandle(handleID)
//	runnerLogger.Debug("handle superseded")
//
// Output:
//
//	{"time":"...","level":"DEBUG","msg":"handle superseded","component":"runner","handle_id":"..."}
package logging
