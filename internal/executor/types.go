package executor

import (
	"context"
	"time"

	"probeharness/internal/probe"
	"probeharness/internal/registry"
	"probeharness/internal/schedule"
)

// Result represents the outcome of one test case.
type Result string

const (
	// ResultPassed indicates the test case passed.
	ResultPassed Result = "PASSED"
	// ResultFailed indicates the test case failed, including probe setup
	// failures for the case's configuration.
	ResultFailed Result = "FAILED"
	// ResultSkipped indicates the case's method is unsupported in this
	// environment.
	ResultSkipped Result = "SKIPPED"
)

// TestCase is one schedulable test bound to exactly one configuration. Index
// records discovery order and serves as the stable tie-break.
type TestCase struct {
	Name   string
	Config registry.Configuration
	Phase  schedule.Phase
	Index  int
	// Body runs the test against the group's probe handle. A non-nil
	// error is a failure; skipping is decided by the executor alone.
	Body func(ctx context.Context, handle *probe.Handle) error
}

// ConfigKey, Posthoc and Describe satisfy schedule.Item.
func (tc TestCase) ConfigKey() string { return tc.Config.Key() }
func (tc TestCase) Posthoc() bool     { return tc.Phase == schedule.PhasePosthoc }
func (tc TestCase) Describe() string  { return tc.Name }

// TestCaseResult is the recorded outcome of one executed test case.
type TestCaseResult struct {
	Case      TestCase      `json:"-"`
	Name      string        `json:"name"`
	Config    string        `json:"configuration"`
	Phase     string        `json:"phase"`
	Result    Result        `json:"result"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"start_time"`
}

// SuiteResult aggregates one full run.
type SuiteResult struct {
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Duration    time.Duration    `json:"duration"`
	TotalCases  int              `json:"total_cases"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	CaseResults []TestCaseResult `json:"case_results"`
}

// Reporter receives execution progress. Group starts are reported from the
// worker running the group, so implementations must be safe for concurrent
// use.
type Reporter interface {
	ReportStart(totalCases, totalGroups, parallel int)
	ReportGroupStart(config registry.Configuration, cases int)
	ReportCaseResult(result TestCaseResult)
	ReportSuiteResult(result SuiteResult)
}
