// Package report renders suite execution progress and results for humans
// (live lines plus a summary table) and machines (a JSON report file).
package report
