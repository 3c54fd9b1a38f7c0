/*
Package log provides structured logging for the cluster master using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
the logging patterns the sync pipelines need most: attributing a line to a
worker name and, within a worker, to the sync task that produced it.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	workerLog := log.WithWorker("worker-01")
	workerLog.Info().Msg("hello accepted")

	taskLog := log.WithTask("worker-01", "integrity-check")
	taskLog.Warn().Err(err).Msg("sync round failed")

# Log Levels

Debug is for per-file diff detail, Info for round start/finish events, Warn
for recoverable per-file errors (§4.6's warnings/errors taxonomy), Error for
round-level failures, Fatal only for unrecoverable startup errors.
*/
package log
