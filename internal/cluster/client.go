package cluster

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	sigsyaml "sigs.k8s.io/yaml"

	"probeharness/pkg/logging"
)

// TestLabel is attached to every resource the harness provisions so that
// leaked resources can be found and purged out of band.
const TestLabel = "probeharness-test"

// Ident names one provisioned deployment and the namespace that scopes it.
// Each configuration group gets a fresh Ident so concurrently running groups
// never collide on cluster state.
type Ident struct {
	Namespace string
	Name      string
}

// Client is the narrow control-plane surface the harness consumes. Everything
// behind it is opaque I/O; the scheduler core never inspects cluster objects
// beyond what the posthoc assertions need.
type Client interface {
	// CreateNamespace creates the namespace scoping one configuration group.
	CreateNamespace(ctx context.Context, ident Ident) error
	// CreateDeployment creates the deployment the tool under test will
	// target, injecting the given environment into its containers.
	CreateDeployment(ctx context.Context, ident Ident, image string, env map[string]string) error
	// GetDeployment fetches a deployment for residual-state assertions.
	GetDeployment(ctx context.Context, ident Ident) (*appsv1.Deployment, error)
	// DeleteDeployment removes a deployment, tolerating not-found.
	DeleteDeployment(ctx context.Context, ident Ident) error
	// DeleteNamespace removes a namespace, tolerating not-found.
	DeleteNamespace(ctx context.Context, namespace string) error
	// ApplyManifest creates a resource from a raw JSON or YAML manifest.
	ApplyManifest(ctx context.Context, manifest []byte) error
	// RunWebserver provisions the observable webserver deployment and
	// service in the namespace, returning the service name.
	RunWebserver(ctx context.Context, namespace string) (string, error)
}

// clusterClient implements Client using controller-runtime.
type clusterClient struct {
	client.Client
}

// NewClient creates a Client from a kubeconfig path. An empty path falls back
// to the standard kubeconfig loading rules.
func NewClient(kubeconfig string) (Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}

	return &clusterClient{Client: k8sClient}, nil
}

// NewClientFor wraps an existing controller-runtime client. Used by tests to
// substitute a fake.
func NewClientFor(c client.Client) Client {
	return &clusterClient{Client: c}
}

func (c *clusterClient) CreateNamespace(ctx context.Context, ident Ident) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: ident.Namespace,
			Labels: map[string]string{
				TestLabel: ident.Name,
			},
		},
	}

	if err := c.Create(ctx, ns); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", ident.Namespace, err)
	}

	logging.Debug("cluster", "Created namespace %s", ident.Namespace)
	return nil
}

func (c *clusterClient) CreateDeployment(ctx context.Context, ident Ident, image string, env map[string]string) error {
	deployment := NewDeployment(ident, image, env)

	if err := c.Create(ctx, deployment); err != nil {
		return fmt.Errorf("failed to create deployment %s/%s: %w", ident.Namespace, ident.Name, err)
	}

	logging.Debug("cluster", "Created deployment %s/%s (image %s)", ident.Namespace, ident.Name, image)
	return nil
}

func (c *clusterClient) GetDeployment(ctx context.Context, ident Ident) (*appsv1.Deployment, error) {
	deployment := &appsv1.Deployment{}
	key := client.ObjectKey{Namespace: ident.Namespace, Name: ident.Name}

	if err := c.Get(ctx, key, deployment); err != nil {
		return nil, fmt.Errorf("failed to get deployment %s/%s: %w", ident.Namespace, ident.Name, err)
	}

	return deployment, nil
}

func (c *clusterClient) DeleteDeployment(ctx context.Context, ident Ident) error {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: ident.Namespace,
			Name:      ident.Name,
		},
	}

	if err := c.Delete(ctx, deployment); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete deployment %s/%s: %w", ident.Namespace, ident.Name, err)
	}

	logging.Debug("cluster", "Deleted deployment %s/%s", ident.Namespace, ident.Name)
	return nil
}

func (c *clusterClient) DeleteNamespace(ctx context.Context, namespace string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: namespace},
	}

	if err := c.Delete(ctx, ns); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}

	logging.Debug("cluster", "Deleted namespace %s", namespace)
	return nil
}

// ApplyManifest decodes one JSON or YAML manifest into an unstructured object
// and creates it. YAML is accepted because sigs.k8s.io/yaml converts it to
// JSON before unmarshalling.
func (c *clusterClient) ApplyManifest(ctx context.Context, manifest []byte) error {
	obj := &unstructured.Unstructured{}
	if err := sigsyaml.Unmarshal(manifest, &obj.Object); err != nil {
		return fmt.Errorf("failed to decode manifest: %w", err)
	}

	if obj.GetKind() == "" || obj.GetAPIVersion() == "" {
		return fmt.Errorf("manifest missing kind or apiVersion")
	}

	if err := c.Create(ctx, obj); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", obj.GetKind(), obj.GetName(), err)
	}

	logging.Debug("cluster", "Applied manifest for %s %s", obj.GetKind(), obj.GetName())
	return nil
}
