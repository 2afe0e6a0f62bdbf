package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"probeharness/internal/probe"
	"probeharness/internal/schedule"
	"probeharness/pkg/logging"
)

// Executor drives scheduled test cases through the probe lifecycle.
// Configuration groups run concurrently on a bounded worker pool; test cases
// within one group run sequentially because they share one probe instance.
// Cross-group overlap of tool invocations is arbitrated solely by the
// network lock inside the probe manager.
type Executor struct {
	probes   *probe.Manager
	reporter Reporter
	parallel int
	failFast bool
}

// New creates an Executor. parallel values below 1 run groups sequentially.
func New(probes *probe.Manager, reporter Reporter, parallel int, failFast bool) *Executor {
	if parallel < 1 {
		parallel = 1
	}
	return &Executor{
		probes:   probes,
		reporter: reporter,
		parallel: parallel,
		failFast: failFast,
	}
}

// Run schedules and executes the given test cases. Scheduling errors (a
// posthoc case without a primary run, a configuration split across groups)
// abort the whole run before anything executes.
func (e *Executor) Run(ctx context.Context, cases []TestCase) (*SuiteResult, error) {
	ordered, err := schedule.Order(cases)
	if err != nil {
		return nil, fmt.Errorf("scheduling failed: %w", err)
	}

	groups, err := schedule.Groups(ordered)
	if err != nil {
		return nil, fmt.Errorf("scheduling failed: %w", err)
	}

	suite := &SuiteResult{
		StartTime:  time.Now(),
		TotalCases: len(ordered),
	}

	e.reporter.ReportStart(len(ordered), len(groups), e.parallel)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultChan := make(chan TestCaseResult, len(ordered))

	var g errgroup.Group
	g.SetLimit(e.parallel)
	for _, group := range groups {
		g.Go(func() error {
			for _, result := range e.runGroup(runCtx, group) {
				resultChan <- result
			}
			return nil
		})
	}

	go func() {
		// Workers never return errors; failures are data.
		_ = g.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		suite.CaseResults = append(suite.CaseResults, result)
		switch result.Result {
		case ResultPassed:
			suite.Passed++
		case ResultFailed:
			suite.Failed++
		case ResultSkipped:
			suite.Skipped++
		}
		e.reporter.ReportCaseResult(result)

		if e.failFast && result.Result == ResultFailed {
			cancel()
		}
	}

	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)
	e.reporter.ReportSuiteResult(*suite)

	return suite, nil
}

// runGroup executes one contiguous configuration group: skip check, probe
// acquisition, the group's test cases in order, then the group-boundary
// release.
func (e *Executor) runGroup(ctx context.Context, group []TestCase) []TestCaseResult {
	if ctx.Err() != nil {
		// Run aborted before this group started; report nothing.
		return nil
	}

	config := group[0].Config
	e.reporter.ReportGroupStart(config, len(group))

	if reason := config.Method.Unsupported(); reason != "" {
		logging.Info("executor", "Skipping configuration %s: %s", config, reason)
		results := make([]TestCaseResult, 0, len(group))
		for _, tc := range group {
			results = append(results, newResult(tc, ResultSkipped, reason, time.Now()))
		}
		return results
	}

	handle, err := e.probes.Acquire(ctx, config)
	if err != nil {
		logging.Error("executor", err, "Probe setup failed for configuration %s", config)
		results := make([]TestCaseResult, 0, len(group))
		for _, tc := range group {
			results = append(results, newResult(tc, ResultFailed, err.Error(), time.Now()))
		}
		return results
	}

	results := make([]TestCaseResult, 0, len(group))
	for _, tc := range group {
		start := time.Now()
		logging.Debug("executor", "Running %s [%s, %s]", tc.Name, config, tc.Phase)

		if err := tc.Body(ctx, handle); err != nil {
			results = append(results, newResult(tc, ResultFailed, err.Error(), start))
			continue
		}
		results = append(results, newResult(tc, ResultPassed, "", start))
	}

	if err := e.probes.Release(ctx, config); err != nil {
		logging.Warn("executor", "Probe teardown for configuration %s reported: %v", config, err)
	}

	return results
}

func newResult(tc TestCase, result Result, reason string, start time.Time) TestCaseResult {
	return TestCaseResult{
		Case:      tc,
		Name:      tc.Name,
		Config:    tc.Config.Key(),
		Phase:     tc.Phase.String(),
		Result:    result,
		Reason:    reason,
		Duration:  time.Since(start),
		StartTime: start,
	}
}
