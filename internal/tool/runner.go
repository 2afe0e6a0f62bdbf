package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"probeharness/pkg/logging"
)

// Runner invokes the tool under test and returns its combined output. The
// tool is a black box to the harness; the only structure imposed on its
// output is the probe delimiter handled by ParseOutput.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
	// Version reports the tool's version string, used to pick the image
	// for existing-deployment operations.
	Version(ctx context.Context) (string, error)
}

// execRunner runs the tool as a subprocess.
type execRunner struct {
	path string
}

// NewRunner returns a Runner executing the binary at path.
func NewRunner(path string) Runner {
	return &execRunner{path: path}
}

// Run executes the tool with the given arguments. Log output is routed to
// stdout (--logfile -) so a single captured stream carries both diagnostics
// and the probe payload. An in-flight invocation always runs to completion;
// context expiry kills the process and surfaces as an invocation error.
func (r *execRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	full := append([]string{"--logfile", "-"}, args...)

	logging.Debug("tool", "Invoking %s %s", r.path, strings.Join(full, " "))

	cmd := exec.CommandContext(ctx, r.path, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("tool invocation %s %s failed: %w", r.path, strings.Join(full, " "), err)
	}

	return output, nil
}

func (r *execRunner) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, r.path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to query tool version: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
