package registry

import (
	"fmt"
	"os/exec"
)

// Method is one execution strategy of the tool under test. The set of
// methods is closed: each variant declares whether it needs exclusive access
// to the cluster network and how the tool is invoked to run the probe under
// that strategy.
type Method interface {
	Name() string
	// Exclusive reports whether invocations under this method mutate
	// process-wide network state and must never overlap any other
	// configuration's invocation.
	Exclusive() bool
	// Unsupported returns a human-readable reason when the method cannot
	// run in the current environment, or "" when it can. A non-empty
	// reason skips every configuration built from this method before any
	// resource is allocated.
	Unsupported() string
	// InvocationArgs builds the method's argument segment for running the
	// probe entrypoint.
	InvocationArgs(probeEntrypoint string) []string
}

// vpnTCPMethod routes the whole host network through the cluster. It rewrites
// shared network state, so it requires the write side of the resource lock.
type vpnTCPMethod struct{}

func (vpnTCPMethod) Name() string        { return "vpn-tcp" }
func (vpnTCPMethod) Exclusive() bool     { return true }
func (vpnTCPMethod) Unsupported() string { return "" }

func (vpnTCPMethod) InvocationArgs(probeEntrypoint string) []string {
	return []string{
		"--method", "vpn-tcp",
		"--run", "python3", probeEntrypoint,
	}
}

// injectTCPMethod proxies a single process via library injection. Safe to run
// alongside other shared-access methods.
type injectTCPMethod struct{}

func (injectTCPMethod) Name() string        { return "inject-tcp" }
func (injectTCPMethod) Exclusive() bool     { return false }
func (injectTCPMethod) Unsupported() string { return "" }

func (injectTCPMethod) InvocationArgs(probeEntrypoint string) []string {
	return []string{
		"--method", "inject-tcp",
		"--run", "python3", probeEntrypoint,
	}
}

// containerMethod runs the probe inside a docker container. Requires a local
// docker binary; without one every container configuration is skipped.
type containerMethod struct {
	lookPath func(file string) (string, error)
}

func (containerMethod) Name() string    { return "container" }
func (containerMethod) Exclusive() bool { return false }

func (m containerMethod) Unsupported() string {
	if _, err := m.lookPath("docker"); err != nil {
		return "docker not available"
	}
	return ""
}

func (m containerMethod) InvocationArgs(probeEntrypoint string) []string {
	return []string{
		"--method", "container",
		"--docker-run",
		"--volume", fmt.Sprintf("%s:/probe.py", probeEntrypoint),
		"python:3-alpine",
		"python", "/probe.py",
	}
}

// Methods returns the closed set of method variants in their fixed order.
func Methods() []Method {
	return []Method{
		vpnTCPMethod{},
		injectTCPMethod{},
		containerMethod{lookPath: exec.LookPath},
	}
}

// NewContainerMethod returns the container method with an injectable binary
// lookup, for exercising the unsupported path in tests.
func NewContainerMethod(lookPath func(file string) (string, error)) Method {
	return containerMethod{lookPath: lookPath}
}
