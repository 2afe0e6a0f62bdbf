// Package logging provides subsystem-tagged structured logging for
// probeharness, built on log/slog.
//
// Every log call carries a subsystem name (for example "executor" or
// "cluster") so that interleaved output from concurrently running
// configuration groups can be attributed. The package is initialized once
// from the CLI with the desired minimum level; calls below that level are
// suppressed cheaply before formatting.
package logging
