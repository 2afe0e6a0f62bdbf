// Package executor runs scheduled test cases: it resolves each group's
// configuration, applies the skip check before any resource is touched,
// drives the probe lifecycle, and aggregates outcomes for reporting.
package executor
