package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"probeharness/internal/cluster"
	"probeharness/internal/registry"
	"probeharness/internal/rwlock"
	"probeharness/internal/tool"
	"probeharness/pkg/logging"
)

// DesiredEnvironment is injected into pre-created deployments and asserted
// by the environment test cases.
//
// Multi-line values are deliberately absent: the container method cannot
// carry them, and one environment must serve every method.
func DesiredEnvironment() map[string]string {
	return map[string]string{
		"MYENV":           "hello",
		"EXAMPLE_ENVFROM": "foobar",
	}
}

// Handle is the shared fixture for one configuration group: the provisioned
// cluster state plus the probe result captured from the tool invocation.
// Exactly one handle exists per configuration at any instant; it is never
// shared across configurations and never resurrected after teardown.
type Handle struct {
	Config        registry.Configuration
	Ident         cluster.Ident
	WebserverName string
	Result        *tool.Result

	// exclusive records that the write lock is still held on the group's
	// behalf and must be released at the group boundary.
	exclusive bool
}

// SetupError reports a failed probe creation. Every test case that would
// have used the probe fails with it; nothing is cached and nothing is
// retried.
type SetupError struct {
	Config string
	Output []byte
	Err    error
}

func (e *SetupError) Error() string {
	if len(e.Output) > 0 {
		return fmt.Sprintf("probe setup failed for configuration %s: %v\n%s", e.Config, e.Err, string(e.Output))
	}
	return fmt.Sprintf("probe setup failed for configuration %s: %v", e.Config, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Manager owns the probe cache. Creation is lazy and deduplicated: a race to
// create the probe for one configuration results in exactly one tool
// invocation. Bookkeeping is guarded by an internal mutex, distinct from the
// network lock that governs the logical resource.
type Manager struct {
	network    *rwlock.Lock
	cluster    cluster.Client
	runner     tool.Runner
	entrypoint string
	env        map[string]string

	flight  singleflight.Group
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates a Manager. entrypoint is the path to the probe script
// the tool runs inside its execution context.
func NewManager(network *rwlock.Lock, clusterClient cluster.Client, runner tool.Runner, entrypoint string) *Manager {
	return &Manager{
		network:    network,
		cluster:    clusterClient,
		runner:     runner,
		entrypoint: entrypoint,
		env:        DesiredEnvironment(),
		handles:    make(map[string]*Handle),
	}
}

// Acquire returns the configuration's probe handle, creating it on first
// use. The caller must not Acquire a configuration whose method is
// unsupported; that check happens before any resource is touched.
func (m *Manager) Acquire(ctx context.Context, config registry.Configuration) (*Handle, error) {
	key := config.Key()

	m.mu.Lock()
	if handle, ok := m.handles[key]; ok {
		m.mu.Unlock()
		return handle, nil
	}
	m.mu.Unlock()

	v, err, _ := m.flight.Do(key, func() (interface{}, error) {
		// A loser of the race may arrive after the winner finished and
		// the flight was forgotten; the cache is authoritative.
		m.mu.Lock()
		if handle, ok := m.handles[key]; ok {
			m.mu.Unlock()
			return handle, nil
		}
		m.mu.Unlock()

		handle, err := m.create(ctx, config)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.handles[key] = handle
		m.mu.Unlock()
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// create provisions the group's cluster state and runs the tool invocation
// under the method-appropriate side of the network lock. The lock is held
// for the whole invocation because the invocation itself performs the
// network-state-sensitive operation. For exclusive methods it stays held
// after creation: posthoc test cases validate state while the exclusive
// change is still in effect, so the hold extends to Release.
func (m *Manager) create(ctx context.Context, config registry.Configuration) (*Handle, error) {
	ident := cluster.NewIdent()

	logging.Info("probe", "Creating probe for configuration %s (namespace %s)", config, ident.Namespace)

	if err := m.cluster.CreateNamespace(ctx, ident); err != nil {
		return nil, &SetupError{Config: config.Key(), Err: err}
	}

	// The webserver must exist before the deployment is prepared: the
	// environment Kubernetes hands to the deployment's containers depends
	// on the services present at pod creation time.
	webserverName, err := m.cluster.RunWebserver(ctx, ident.Namespace)
	if err != nil {
		m.cleanup(ctx, ident)
		return nil, &SetupError{Config: config.Key(), Err: err}
	}

	if err := config.Operation.Prepare(ctx, m.cluster, ident, m.env); err != nil {
		m.cleanup(ctx, ident)
		return nil, &SetupError{Config: config.Key(), Err: err}
	}

	args := append(config.Operation.InvocationArgs(ident), config.Method.InvocationArgs(m.entrypoint)...)

	exclusive := config.Method.Exclusive()
	if exclusive {
		m.network.LockWrite()
	} else {
		m.network.LockRead()
	}

	output, err := m.runner.Run(ctx, args)
	if err != nil {
		m.unlock(exclusive)
		m.cleanup(ctx, ident)
		return nil, &SetupError{Config: config.Key(), Output: output, Err: err}
	}

	result, err := tool.ParseOutput(output)
	if err != nil {
		m.unlock(exclusive)
		m.cleanup(ctx, ident)
		return nil, &SetupError{Config: config.Key(), Err: err}
	}

	// Shared methods release immediately: the probe result is already
	// captured and later test cases only read it. The exclusive hold
	// survives until Release.
	if !exclusive {
		m.network.UnlockRead()
	}

	return &Handle{
		Config:        config,
		Ident:         ident,
		WebserverName: webserverName,
		Result:        result,
		exclusive:     exclusive,
	}, nil
}

// Release tears down the configuration's probe at the group boundary. It is
// called once per group after the last test case (posthoc included) has
// finished. Releasing a configuration with no active handle is a no-op:
// setup may have failed, or the method may have been skipped.
func (m *Manager) Release(ctx context.Context, config registry.Configuration) error {
	key := config.Key()

	m.mu.Lock()
	handle := m.handles[key]
	delete(m.handles, key)
	m.mu.Unlock()

	if handle == nil {
		logging.Debug("probe", "Release for configuration %s with no active probe", config)
		return nil
	}

	if handle.exclusive {
		m.network.UnlockWrite()
	}

	logging.Info("probe", "Tearing down probe for configuration %s", config)

	var errs []error
	if err := m.cluster.DeleteDeployment(ctx, handle.Ident); err != nil {
		errs = append(errs, err)
	}
	if err := m.cluster.DeleteNamespace(ctx, handle.Ident.Namespace); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Active reports whether a probe currently exists for the configuration.
func (m *Manager) Active(config registry.Configuration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[config.Key()]
	return ok
}

func (m *Manager) unlock(exclusive bool) {
	if exclusive {
		m.network.UnlockWrite()
	} else {
		m.network.UnlockRead()
	}
}

// cleanup deletes whatever the failed setup managed to provision. Deleting
// the namespace sweeps the webserver and any prepared deployment with it.
func (m *Manager) cleanup(ctx context.Context, ident cluster.Ident) {
	if err := m.cluster.DeleteNamespace(ctx, ident.Namespace); err != nil {
		logging.Warn("probe", "Failed to clean up namespace %s: %v", ident.Namespace, err)
	}
}
