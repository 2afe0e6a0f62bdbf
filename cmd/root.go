package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution with all test cases passing.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a setup or scheduling error before results existed.
	ExitCodeError = 1
	// ExitCodeTestFailures indicates the suite ran but at least one case failed.
	ExitCodeTestFailures = 2
)

// rootCmd represents the base command for the probeharness application.
var rootCmd = &cobra.Command{
	Use:   "probeharness",
	Short: "Run end-to-end probe tests against a shared Kubernetes cluster",
	Long: `probeharness drives a proxying tool through its configuration matrix
(execution method x deployment operation) against a Kubernetes cluster,
scheduling test cases so each configuration's probe is created once and
exclusive methods never overlap other invocations.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "probeharness version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps command errors to semantic exit codes for scripting.
func exitCodeFor(err error) int {
	if errors.Is(err, errTestFailures) {
		return ExitCodeTestFailures
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newVersionCmd())
}
