// Package probe manages the per-configuration shared fixture: lazily created
// on first use by any test case in a configuration group, cached for the
// rest of the group, and torn down exactly once at the group boundary.
package probe
