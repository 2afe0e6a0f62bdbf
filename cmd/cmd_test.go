package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")

	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	assert.Equal(t, "probeharness version 1.2.3\n", buf.String())
}

func TestListCommandMatrix(t *testing.T) {
	var buf bytes.Buffer
	cmd := newListCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "vpn-tcp,new")
	assert.Contains(t, output, "inject-tcp,swap")
	assert.Contains(t, output, "container,existing")
	assert.Contains(t, output, "exclusive")
}

func TestListCommandFiltered(t *testing.T) {
	var buf bytes.Buffer
	cmd := newListCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--method", "inject-tcp", "--operation", "new"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "inject-tcp,new")
	assert.NotContains(t, output, "vpn-tcp")
	assert.NotContains(t, output, "swap")
}

func TestListCommandPlan(t *testing.T) {
	var buf bytes.Buffer
	cmd := newListCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--plan", "--method", "inject-tcp"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "environment-for-services")
	assert.Contains(t, output, "posthoc")
}

func TestListCommandUnknownMethod(t *testing.T) {
	cmd := newListCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--method", "teleport"})

	require.Error(t, cmd.Execute())
}

func TestResolveConfigFlagsOverrideDefaults(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--parallel", "3", "--fail-fast", "--timeout", "5m"}))

	flags := &runFlags{parallel: 3, failFast: true, timeout: 5 * time.Minute}
	config, err := resolveConfig(cmd, flags)
	require.NoError(t, err)

	assert.Equal(t, 3, config.Parallel)
	assert.True(t, config.FailFast)
	assert.Equal(t, 5*time.Minute, config.Timeout)
	// Untouched settings keep defaults.
	assert.Equal(t, "telepresence", config.ToolPath)
}

func TestResolveConfigRejectsBadParallel(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--parallel", "0"}))

	flags := &runFlags{parallel: 0}
	_, err := resolveConfig(cmd, flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel")
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitCodeTestFailures, exitCodeFor(errTestFailures))
	assert.Equal(t, ExitCodeError, exitCodeFor(errors.New("boom")))
}
