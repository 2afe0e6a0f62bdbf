package suite

import (
	"context"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"probeharness/internal/cluster"
	"probeharness/internal/executor"
	"probeharness/internal/probe"
	"probeharness/internal/registry"
	"probeharness/internal/schedule"
)

// Catalog produces the test cases for a configuration matrix. Bodies close
// over the cluster client so posthoc cases can assert on residual state.
type Catalog struct {
	cluster cluster.Client
}

func NewCatalog(clusterClient cluster.Client) *Catalog {
	return &Catalog{cluster: clusterClient}
}

// Discover expands the matrix into the flat, arbitrarily ordered test list
// the scheduler consumes: all primary cases first (per configuration), then
// all posthoc cases. Reordering into the executable total order is the
// scheduler's job, not discovery's.
func (c *Catalog) Discover(configs []registry.Configuration) []executor.TestCase {
	var cases []executor.TestCase
	index := 0

	add := func(name string, config registry.Configuration, phase schedule.Phase,
		body func(ctx context.Context, h *probe.Handle) error) {
		cases = append(cases, executor.TestCase{
			Name:   name,
			Config: config,
			Phase:  phase,
			Index:  index,
			Body:   body,
		})
		index++
	}

	for _, config := range configs {
		// The environment-from-deployment assertion only applies when
		// the operation pre-created the deployment with the desired
		// environment.
		if config.Operation.PreparesEnvironment() {
			add("environment-from-deployment", config, schedule.PhasePrimary, environmentFromDeployment)
		}
		add("environment-for-services", config, schedule.PhasePrimary, environmentForServices)
	}

	for _, config := range configs {
		if config.Operation.PreparesEnvironment() {
			add("deployment-intact-after-exit", config, schedule.PhasePosthoc, c.deploymentIntact)
		} else {
			add("new-deployment-removed-after-exit", config, schedule.PhasePosthoc, c.newDeploymentRemoved)
		}
	}

	return cases
}

// environmentFromDeployment checks that the execution context supplied the
// environment variables defined on the deployment.
func environmentFromDeployment(ctx context.Context, h *probe.Handle) error {
	desired := probe.DesiredEnvironment()
	probed := h.Result.Environ

	var missing []string
	for key, want := range desired {
		if got, ok := probed[key]; !ok || got != want {
			missing = append(missing, fmt.Sprintf("%s=%q (got %q)", key, want, probed[key]))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("probe environment missing expected items: %s", strings.Join(missing, ", "))
	}
	return nil
}

// environmentForServices checks that the execution context supplied the
// variables locating the webserver service on the cluster.
func environmentForServices(ctx context.Context, h *probe.Handle) error {
	probed := h.Result.Environ
	serviceEnv := strings.ToUpper(strings.ReplaceAll(h.WebserverName, "-", "_"))

	host, ok := probed[serviceEnv+"_SERVICE_HOST"]
	if !ok {
		return fmt.Errorf("probe environment missing %s_SERVICE_HOST", serviceEnv)
	}
	port, ok := probed[serviceEnv+"_SERVICE_PORT"]
	if !ok {
		return fmt.Errorf("probe environment missing %s_SERVICE_PORT", serviceEnv)
	}

	prefix := fmt.Sprintf("%s_PORT_%s_TCP", serviceEnv, port)
	desired := map[string]string{
		serviceEnv + "_PORT": fmt.Sprintf("tcp://%s:%s", host, port),
		prefix + "_PROTO":    "tcp",
		prefix + "_PORT":     port,
		prefix + "_ADDR":     host,
	}
	for key, want := range desired {
		if got := probed[key]; got != want {
			return fmt.Errorf("probe environment %s = %q, expected %q", key, got, want)
		}
	}

	if probed[prefix] != probed[serviceEnv+"_PORT"] {
		return fmt.Errorf("probe environment %s and %s_PORT disagree", prefix, serviceEnv)
	}
	return nil
}

// deploymentIntact asserts that the pre-created deployment survived the tool
// session: for swap operations the tool must have restored the original
// deployment on exit.
func (c *Catalog) deploymentIntact(ctx context.Context, h *probe.Handle) error {
	deployment, err := c.cluster.GetDeployment(ctx, h.Ident)
	if err != nil {
		return fmt.Errorf("deployment %s/%s not found after tool exit: %w",
			h.Ident.Namespace, h.Ident.Name, err)
	}
	if deployment.Spec.Replicas != nil && *deployment.Spec.Replicas == 0 {
		return fmt.Errorf("deployment %s/%s scaled to zero after tool exit",
			h.Ident.Namespace, h.Ident.Name)
	}
	return nil
}

// newDeploymentRemoved asserts that the deployment the tool created for a
// new-deployment session was cleaned up when the tool exited.
func (c *Catalog) newDeploymentRemoved(ctx context.Context, h *probe.Handle) error {
	_, err := c.cluster.GetDeployment(ctx, h.Ident)
	if err == nil {
		return fmt.Errorf("deployment %s/%s still present after tool exit",
			h.Ident.Namespace, h.Ident.Name)
	}
	if apierrors.IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("could not verify deployment removal: %w", err)
}
