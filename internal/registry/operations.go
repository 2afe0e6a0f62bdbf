package registry

import (
	"context"
	"fmt"
	"os"

	"probeharness/internal/cluster"
)

// SwapImage is the image swapped into a running deployment by the swap
// operation; the tool under test replaces it for the duration of the session.
const SwapImage = "openshift/hello-openshift"

// DefaultRegistry is the image registry prefix used when the environment
// does not override it.
const DefaultRegistry = "datawire"

// RegistryEnvVar selects the image registry prefix for harness images.
const RegistryEnvVar = "PROBEHARNESS_REGISTRY"

// ImageRegistry resolves the registry prefix from the environment.
func ImageRegistry() string {
	if registry := os.Getenv(RegistryEnvVar); registry != "" {
		return registry
	}
	return DefaultRegistry
}

// Operation is one deployment-preparation strategy. The set is closed: each
// variant declares how the target deployment comes to exist and how the tool
// is pointed at it.
type Operation interface {
	Name() string
	// PreparesEnvironment reports whether the operation pre-creates the
	// deployment with the desired environment. When false, assertions
	// about pre-created environment variables do not apply.
	PreparesEnvironment() bool
	// Prepare brings the external deployment into the state the operation
	// needs before the tool is invoked. A no-op for operations where the
	// tool creates the deployment itself.
	Prepare(ctx context.Context, c cluster.Client, ident cluster.Ident, env map[string]string) error
	// InvocationArgs builds the operation's argument segment targeting the
	// prepared deployment.
	InvocationArgs(ident cluster.Ident) []string
}

// newOperation lets the tool create a fresh deployment itself.
type newOperation struct{}

func (newOperation) Name() string              { return "new" }
func (newOperation) PreparesEnvironment() bool { return false }

func (newOperation) Prepare(ctx context.Context, c cluster.Client, ident cluster.Ident, env map[string]string) error {
	return nil
}

func (newOperation) InvocationArgs(ident cluster.Ident) []string {
	return []string{
		"--namespace", ident.Namespace,
		"--new-deployment", ident.Name,
	}
}

// existingOperation pre-creates a deployment and targets it by name. With
// swap set, the tool swaps the running deployment's image instead of
// attaching to it.
type existingOperation struct {
	swap  bool
	image string
}

func (o existingOperation) Name() string {
	if o.swap {
		return "swap"
	}
	return "existing"
}

func (existingOperation) PreparesEnvironment() bool { return true }

func (o existingOperation) Prepare(ctx context.Context, c cluster.Client, ident cluster.Ident, env map[string]string) error {
	return c.CreateDeployment(ctx, ident, o.image, env)
}

func (o existingOperation) InvocationArgs(ident cluster.Ident) []string {
	option := "--deployment"
	if o.swap {
		option = "--swap-deployment"
	}
	return []string{
		"--namespace", ident.Namespace,
		option, ident.Name,
	}
}

// Operations returns the closed set of operation variants in their fixed
// order. The tool version selects the harness image for the existing
// operation; the swap operation always starts from SwapImage.
func Operations(imageRegistry, version string) []Operation {
	return []Operation{
		newOperation{},
		existingOperation{
			swap:  false,
			image: fmt.Sprintf("%s/probeharness-k8s:%s", imageRegistry, version),
		},
		existingOperation{
			swap:  true,
			image: SwapImage,
		},
	}
}
