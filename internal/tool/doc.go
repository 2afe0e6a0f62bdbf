// Package tool is the invocation boundary to the CLI under test: argument
// assembly is left to the registry, execution and probe-payload extraction
// happen here.
package tool
