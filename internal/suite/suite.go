package suite

import (
	"context"
	"fmt"
	"io"
	"strings"

	"probeharness/internal/cluster"
	"probeharness/internal/executor"
	"probeharness/internal/probe"
	"probeharness/internal/registry"
	"probeharness/internal/report"
	"probeharness/internal/rwlock"
	"probeharness/internal/tool"
	"probeharness/pkg/logging"
)

// SelectMethods filters the full method set down to the named ones, keeping
// the fixed order. An empty selection means all methods.
func SelectMethods(names []string) ([]registry.Method, error) {
	all := registry.Methods()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]registry.Method, len(all))
	for _, m := range all {
		byName[m.Name()] = m
	}

	selected := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown method %q (known: %s)", name, knownNames(all))
		}
		selected[name] = true
	}

	var methods []registry.Method
	for _, m := range all {
		if selected[m.Name()] {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

// SelectOperations filters the full operation set down to the named ones,
// keeping the fixed order. An empty selection means all operations.
func SelectOperations(names []string, imageRegistry, version string) ([]registry.Operation, error) {
	all := registry.Operations(imageRegistry, version)
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]registry.Operation, len(all))
	for _, o := range all {
		byName[o.Name()] = o
	}

	selected := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown operation %q (known: %s)", name, knownOperationNames(all))
		}
		selected[name] = true
	}

	var operations []registry.Operation
	for _, o := range all {
		if selected[o.Name()] {
			operations = append(operations, o)
		}
	}
	return operations, nil
}

func knownNames(methods []registry.Method) string {
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.Name())
	}
	return strings.Join(names, ", ")
}

func knownOperationNames(operations []registry.Operation) string {
	names := make([]string, 0, len(operations))
	for _, o := range operations {
		names = append(names, o.Name())
	}
	return strings.Join(names, ", ")
}

// BuildMatrix resolves the configuration matrix the config selects, querying
// the tool version to pin the harness image.
func BuildMatrix(ctx context.Context, runner tool.Runner, config Config) ([]registry.Configuration, error) {
	version, err := runner.Version(ctx)
	if err != nil {
		return nil, err
	}

	methods, err := SelectMethods(config.Methods)
	if err != nil {
		return nil, err
	}
	operations, err := SelectOperations(config.Operations, registry.ImageRegistry(), version)
	if err != nil {
		return nil, err
	}

	return registry.Matrix(methods, operations), nil
}

// Run executes the full suite described by config, writing progress to out.
// The returned suite result is non-nil whenever execution started; err is
// reserved for setup and scheduling failures.
func Run(ctx context.Context, config Config, out io.Writer) (*executor.SuiteResult, error) {
	runner := tool.NewRunner(config.ToolPath)

	configs, err := BuildMatrix(ctx, runner, config)
	if err != nil {
		return nil, err
	}

	clusterClient, err := cluster.NewClient(config.Kubeconfig)
	if err != nil {
		return nil, err
	}

	return RunWith(ctx, config, out, runner, clusterClient, configs)
}

// RunWith is Run with the external dependencies injected.
func RunWith(ctx context.Context, config Config, out io.Writer, runner tool.Runner,
	clusterClient cluster.Client, configs []registry.Configuration) (*executor.SuiteResult, error) {

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	cases := NewCatalog(clusterClient).Discover(configs)
	logging.Info("suite", "Discovered %d test cases across %d configurations", len(cases), len(configs))

	probes := probe.NewManager(rwlock.New(), clusterClient, runner, config.ProbePath)
	reporter := report.NewReporter(out, config.Verbose, config.ReportPath)
	exec := executor.New(probes, reporter, config.Parallel, config.FailFast)

	return exec.Run(ctx, cases)
}
