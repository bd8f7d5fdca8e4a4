// Package logger provides the structured logging interface used across audiograb.
//
// It wraps zerolog and offers:
//   - colored console output on stderr, or JSON lines
//   - an optional append-only log file
//   - derived loggers carrying fields such as run_id or persona
//   - a process-wide logger configured once by the CLI
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("run_id", id)
//	log.InfoWithFields("Fetching page", map[string]interface{}{
//	    "url": pageURL,
//	})
//
// Library packages accept a Logger and default to NewNopLogger when none is
// given. Tests use NewTestLogger to assert on what was logged.
package logger
