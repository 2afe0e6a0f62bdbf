package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"

	"probeharness/internal/cluster"
	"probeharness/internal/registry"
	"probeharness/internal/rwlock"
)

// fakeCluster records provisioning calls without a control plane.
type fakeCluster struct {
	mu                sync.Mutex
	namespaces        []string
	deployments       []cluster.Ident
	deletedNamespaces []string
	webserverErr      error
}

func (f *fakeCluster) CreateNamespace(ctx context.Context, ident cluster.Ident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces = append(f.namespaces, ident.Namespace)
	return nil
}

func (f *fakeCluster) CreateDeployment(ctx context.Context, ident cluster.Ident, image string, env map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployments = append(f.deployments, ident)
	return nil
}

func (f *fakeCluster) GetDeployment(ctx context.Context, ident cluster.Ident) (*appsv1.Deployment, error) {
	return &appsv1.Deployment{}, nil
}

func (f *fakeCluster) DeleteDeployment(ctx context.Context, ident cluster.Ident) error {
	return nil
}

func (f *fakeCluster) DeleteNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedNamespaces = append(f.deletedNamespaces, namespace)
	return nil
}

func (f *fakeCluster) ApplyManifest(ctx context.Context, manifest []byte) error {
	return nil
}

func (f *fakeCluster) RunWebserver(ctx context.Context, namespace string) (string, error) {
	if f.webserverErr != nil {
		return "", f.webserverErr
	}
	return "fake-web", nil
}

// fakeRunner emits a canned probe payload and counts invocations.
type fakeRunner struct {
	calls  int64
	delay  time.Duration
	err    error
	output []byte
	mu     sync.Mutex
	args   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	atomic.AddInt64(&f.calls, 1)
	f.mu.Lock()
	f.args = append(f.args, args)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return []byte("T: something broke"), f.err
	}
	if f.output != nil {
		return f.output, nil
	}
	return []byte(`noise{probe delimiter}{"environ": {"MYENV": "hello"}}`), nil
}

func (f *fakeRunner) Version(ctx context.Context) (string, error) {
	return "0.0-test", nil
}

func sharedConfig() registry.Configuration {
	return registry.Configuration{
		Method:    registry.Methods()[1], // inject-tcp
		Operation: registry.Operations("datawire", "0.0-test")[1],
	}
}

func exclusiveConfig() registry.Configuration {
	return registry.Configuration{
		Method:    registry.Methods()[0], // vpn-tcp
		Operation: registry.Operations("datawire", "0.0-test")[0],
	}
}

func TestAcquireCreatesOnce(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(rwlock.New(), &fakeCluster{}, runner, "/p/probe.py")
	config := sharedConfig()

	first, err := m.Acquire(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, first.Result)
	assert.Equal(t, "hello", first.Result.Environ["MYENV"])
	assert.Equal(t, "fake-web", first.WebserverName)

	second, err := m.Acquire(context.Background(), config)
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated Acquire must return the cached handle")
	assert.Equal(t, int64(1), atomic.LoadInt64(&runner.calls))
}

func TestAcquireRaceSingleInvocation(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	m := NewManager(rwlock.New(), &fakeCluster{}, runner, "/p/probe.py")
	config := sharedConfig()

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	errs := make([]error, len(handles))
	for i := 0; i < len(handles); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = m.Acquire(context.Background(), config)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&runner.calls),
		"a race to create must not produce two invocations")
	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
}

func TestAcquireArgsOrder(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(rwlock.New(), &fakeCluster{}, runner, "/p/probe.py")

	_, err := m.Acquire(context.Background(), sharedConfig())
	require.NoError(t, err)

	require.Len(t, runner.args, 1)
	args := runner.args[0]
	// Operation args first, then method args.
	assert.Equal(t, "--namespace", args[0])
	assert.Contains(t, args, "--deployment")
	methodAt := -1
	deploymentAt := -1
	for i, a := range args {
		if a == "--method" {
			methodAt = i
		}
		if a == "--deployment" {
			deploymentAt = i
		}
	}
	assert.Greater(t, methodAt, deploymentAt)
}

func TestSetupFailureNotCachedAndLockReleased(t *testing.T) {
	network := rwlock.New()
	runner := &fakeRunner{err: errors.New("exit status 1")}
	m := NewManager(network, &fakeCluster{}, runner, "/p/probe.py")
	config := exclusiveConfig()

	_, err := m.Acquire(context.Background(), config)
	require.Error(t, err)

	setupErr := &SetupError{}
	require.True(t, errors.As(err, &setupErr))
	assert.Contains(t, setupErr.Error(), config.Key())
	assert.Contains(t, setupErr.Error(), "something broke", "captured output must be surfaced")

	assert.False(t, m.Active(config), "failed setup must cache nothing")

	// The write lock must have been released on failure.
	acquired := make(chan struct{})
	go func() {
		network.LockWrite()
		network.UnlockWrite()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("network lock still held after failed exclusive setup")
	}
}

func TestParseFailureSurfacesRawOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte("garbage with no delimiter")}
	m := NewManager(rwlock.New(), &fakeCluster{}, runner, "/p/probe.py")
	config := sharedConfig()

	_, err := m.Acquire(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garbage with no delimiter")
	assert.False(t, m.Active(config))
}

func TestWebserverFailureCleansNamespace(t *testing.T) {
	fc := &fakeCluster{webserverErr: fmt.Errorf("no capacity")}
	m := NewManager(rwlock.New(), fc, &fakeRunner{}, "/p/probe.py")

	_, err := m.Acquire(context.Background(), sharedConfig())
	require.Error(t, err)

	require.Len(t, fc.namespaces, 1)
	assert.Equal(t, fc.namespaces, fc.deletedNamespaces)
}

func TestExclusiveHoldSpansUntilRelease(t *testing.T) {
	network := rwlock.New()
	m := NewManager(network, &fakeCluster{}, &fakeRunner{}, "/p/probe.py")
	config := exclusiveConfig()

	_, err := m.Acquire(context.Background(), config)
	require.NoError(t, err)

	// The exclusive change is still in effect for posthoc validation, so
	// readers must stay blocked after Acquire returns.
	acquired := make(chan struct{})
	go func() {
		network.LockRead()
		network.UnlockRead()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("reader acquired while exclusive probe was active")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.Release(context.Background(), config))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after exclusive probe release")
	}
}

func TestSharedLockReleasedAfterCreation(t *testing.T) {
	network := rwlock.New()
	m := NewManager(network, &fakeCluster{}, &fakeRunner{}, "/p/probe.py")

	_, err := m.Acquire(context.Background(), sharedConfig())
	require.NoError(t, err)

	// Shared methods release the read lock once the invocation captured
	// its result, so a writer must be able to proceed.
	acquired := make(chan struct{})
	go func() {
		network.LockWrite()
		network.UnlockWrite()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("writer blocked although shared probe holds no lock")
	}
}

func TestReleaseTearsDownAndForgets(t *testing.T) {
	fc := &fakeCluster{}
	m := NewManager(rwlock.New(), fc, &fakeRunner{}, "/p/probe.py")
	config := sharedConfig()

	handle, err := m.Acquire(context.Background(), config)
	require.NoError(t, err)
	require.True(t, m.Active(config))

	require.NoError(t, m.Release(context.Background(), config))
	assert.False(t, m.Active(config))
	assert.Contains(t, fc.deletedNamespaces, handle.Ident.Namespace)
}

func TestReleaseWithoutProbeIsNoop(t *testing.T) {
	m := NewManager(rwlock.New(), &fakeCluster{}, &fakeRunner{}, "/p/probe.py")
	assert.NoError(t, m.Release(context.Background(), sharedConfig()))
}
