// Package suite assembles the end-to-end harness: it resolves the
// configuration matrix, discovers the test cases for it, and wires the probe
// manager, executor and reporter into one run.
package suite
