package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"probeharness/internal/executor"
	"probeharness/internal/registry"
	"probeharness/pkg/logging"
)

// Durations are rounded for readability; sub-millisecond noise carries no
// signal for end-to-end runs.
const timeUnit = time.Millisecond

// consoleReporter implements executor.Reporter with live progress lines and
// a final summary table. Concurrently running groups report through it, so
// every method takes the mutex.
type consoleReporter struct {
	mu         sync.Mutex
	out        io.Writer
	verbose    bool
	reportPath string
}

// NewReporter creates a reporter writing to out. When reportPath is set, the
// full suite result is additionally written there as JSON.
func NewReporter(out io.Writer, verbose bool, reportPath string) executor.Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &consoleReporter{
		out:        out,
		verbose:    verbose,
		reportPath: reportPath,
	}
}

func (r *consoleReporter) ReportStart(totalCases, totalGroups, parallel int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "🧪 Running %d test cases across %d configuration groups (parallel: %d)\n",
		totalCases, totalGroups, parallel)
}

func (r *consoleReporter) ReportGroupStart(config registry.Configuration, cases int) {
	if !r.verbose {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "🎯 Starting configuration %s (%d cases)\n", config, cases)
}

func (r *consoleReporter) ReportCaseResult(result executor.TestCaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch result.Result {
	case executor.ResultPassed:
		fmt.Fprintf(r.out, "✅ %s [%s] (%v)\n", result.Name, result.Config, result.Duration.Round(timeUnit))
	case executor.ResultSkipped:
		fmt.Fprintf(r.out, "⏭️  %s [%s]: %s\n", result.Name, result.Config, result.Reason)
	case executor.ResultFailed:
		fmt.Fprintf(r.out, "❌ %s [%s] (%v)\n", result.Name, result.Config, result.Duration.Round(timeUnit))
		if r.verbose && result.Reason != "" {
			fmt.Fprintf(r.out, "   %s\n", result.Reason)
		}
	}
}

func (r *consoleReporter) ReportSuiteResult(result executor.SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\n")
	r.renderSummaryTable(result)

	verdict := text.FgGreen.Sprint("PASSED")
	if result.Failed > 0 {
		verdict = text.FgRed.Sprint("FAILED")
	}
	fmt.Fprintf(r.out, "\n%s — %d passed, %d failed, %d skipped in %v\n",
		verdict, result.Passed, result.Failed, result.Skipped, result.Duration.Round(timeUnit))

	if r.reportPath != "" {
		if err := writeJSONReport(r.reportPath, result); err != nil {
			logging.Warn("report", "Failed to write report to %s: %v", r.reportPath, err)
		} else {
			fmt.Fprintf(r.out, "📄 Report written to %s\n", r.reportPath)
		}
	}
}

// renderSummaryTable prints per-configuration outcome counts.
func (r *consoleReporter) renderSummaryTable(result executor.SuiteResult) {
	type counts struct{ passed, failed, skipped int }
	perConfig := make(map[string]*counts)
	var order []string

	for _, caseResult := range result.CaseResults {
		c, ok := perConfig[caseResult.Config]
		if !ok {
			c = &counts{}
			perConfig[caseResult.Config] = c
			order = append(order, caseResult.Config)
		}
		switch caseResult.Result {
		case executor.ResultPassed:
			c.passed++
		case executor.ResultFailed:
			c.failed++
		case executor.ResultSkipped:
			c.skipped++
		}
	}
	sort.Strings(order)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"Configuration", "Passed", "Failed", "Skipped"})
	for _, key := range order {
		c := perConfig[key]
		t.AppendRow(table.Row{key, c.passed, c.failed, c.skipped})
	}
	t.AppendFooter(table.Row{"total", result.Passed, result.Failed, result.Skipped})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func writeJSONReport(path string, result executor.SuiteResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
