// Package schedule rewrites a discovered test list into the total order the
// probe lifecycle depends on: configuration groups stay contiguous and
// posthoc test cases run immediately after the primaries that share their
// configuration. The reordering is stable; only posthoc items move.
package schedule
