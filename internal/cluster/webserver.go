package cluster

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"probeharness/pkg/logging"
)

const (
	webserverImage = "openshift/hello-openshift"
	webserverPort  = 8080
)

// RunWebserver provisions a small webserver deployment and a service fronting
// it inside the group's namespace. The probe observes side effects of this
// service (injected *_SERVICE_HOST / *_PORT_* environment variables) and can
// talk to it directly to exercise networking.
//
// It must run before the target deployment is prepared: the environment
// Kubernetes supplies to a pod depends on the services existing at pod
// creation time.
func (c *clusterClient) RunWebserver(ctx context.Context, namespace string) (string, error) {
	name := RandomName()
	replicas := int32(1)

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				TestLabel: name,
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{
					"name": name,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"name":    name,
						TestLabel: name,
					},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "web",
						Image: webserverImage,
						Ports: []corev1.ContainerPort{{
							ContainerPort: webserverPort,
						}},
						Resources: corev1.ResourceRequirements{
							Limits: corev1.ResourceList{
								corev1.ResourceMemory: resource.MustParse("128Mi"),
							},
						},
					}},
				},
			},
		},
	}

	if err := c.Create(ctx, deployment); err != nil {
		return "", fmt.Errorf("failed to create webserver deployment %s/%s: %w", namespace, name, err)
	}

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				TestLabel: name,
			},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{
				"name": name,
			},
			Ports: []corev1.ServicePort{{
				Port:       webserverPort,
				TargetPort: intstr.FromInt32(webserverPort),
			}},
		},
	}

	if err := c.Create(ctx, service); err != nil {
		return "", fmt.Errorf("failed to create webserver service %s/%s: %w", namespace, name, err)
	}

	logging.Debug("cluster", "Started webserver %s in namespace %s", name, namespace)
	return name, nil
}
