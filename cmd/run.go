package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"probeharness/internal/cluster"
	"probeharness/internal/suite"
	"probeharness/internal/tool"
	"probeharness/pkg/logging"
)

// errTestFailures signals that execution completed but cases failed; the
// exit code carries the distinction from setup errors.
var errTestFailures = errors.New("test failures")

// runFlags carries the command-line overrides for one run.
type runFlags struct {
	configPath string
	parallel   int
	timeout    time.Duration
	failFast   bool
	verbose    bool
	debug      bool
	toolPath   string
	probePath  string
	kubeconfig string
	reportPath string
	methods    []string
	operations []string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the end-to-end test suite",
		Long: `Run resolves the configuration matrix, provisions one probe per
configuration, and executes all test cases under the scheduling rules:
posthoc cases run directly after their configuration's primary cases, and
exclusive methods hold the network for their whole group.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}

			level := logging.LevelWarn
			if config.Verbose {
				level = logging.LevelInfo
			}
			if config.Debug {
				level = logging.LevelDebug
			}
			logging.Init(level, cmd.ErrOrStderr())

			return runSuite(cmd, config)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 1, "number of configuration groups to run concurrently")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Minute, "overall suite timeout (0 for none)")
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "stop scheduling new groups after the first failure")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose progress output")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "debug logging")
	cmd.Flags().StringVar(&flags.toolPath, "tool-path", "telepresence", "path to the tool binary under test")
	cmd.Flags().StringVar(&flags.probePath, "probe-path", "probe/probe_endtoend.py", "path to the probe entrypoint")
	cmd.Flags().StringVar(&flags.kubeconfig, "kubeconfig", "", "kubeconfig path (default: standard resolution)")
	cmd.Flags().StringVar(&flags.reportPath, "report-path", "", "write a JSON suite report to this path")
	cmd.Flags().StringSliceVar(&flags.methods, "method", nil, "restrict to the named methods (repeatable)")
	cmd.Flags().StringSliceVar(&flags.operations, "operation", nil, "restrict to the named operations (repeatable)")

	return cmd
}

// resolveConfig layers explicit flags over the config file over the defaults.
// Only flags the user actually set override the file.
func resolveConfig(cmd *cobra.Command, flags *runFlags) (suite.Config, error) {
	config := suite.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := suite.LoadConfig(flags.configPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	set := cmd.Flags().Changed
	if set("parallel") {
		config.Parallel = flags.parallel
	}
	if set("timeout") {
		config.Timeout = flags.timeout
	}
	if set("fail-fast") {
		config.FailFast = flags.failFast
	}
	if set("verbose") {
		config.Verbose = flags.verbose
	}
	if set("debug") {
		config.Debug = flags.debug
	}
	if set("tool-path") {
		config.ToolPath = flags.toolPath
	}
	if set("probe-path") {
		config.ProbePath = flags.probePath
	}
	if set("kubeconfig") {
		config.Kubeconfig = flags.kubeconfig
	}
	if set("report-path") {
		config.ReportPath = flags.reportPath
	}
	if set("method") {
		config.Methods = flags.methods
	}
	if set("operation") {
		config.Operations = flags.operations
	}

	if config.Parallel < 1 {
		return config, fmt.Errorf("parallel must be at least 1, got %d", config.Parallel)
	}
	return config, nil
}

// runSuite performs the setup phase behind a spinner, then hands off to the
// suite executor whose reporter owns the terminal.
func runSuite(cmd *cobra.Command, config suite.Config) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " Resolving configuration matrix..."
	spin.Start()

	runner := tool.NewRunner(config.ToolPath)
	configs, err := suite.BuildMatrix(ctx, runner, config)
	if err != nil {
		spin.Stop()
		return err
	}

	spin.Suffix = " Connecting to cluster..."
	clusterClient, err := cluster.NewClient(config.Kubeconfig)
	spin.Stop()
	if err != nil {
		return err
	}

	result, err := suite.RunWith(ctx, config, out, runner, clusterClient, configs)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return errTestFailures
	}
	return nil
}
