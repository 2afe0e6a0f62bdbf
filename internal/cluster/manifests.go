package cluster

import (
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const targetReplicas = 2

// NewDeployment builds the deployment manifest the tool under test operates
// on. The environment map is injected into the container so the probe can
// observe it from inside the execution context.
func NewDeployment(ident Ident, image string, env map[string]string) *appsv1.Deployment {
	replicas := int32(targetReplicas)

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ident.Name,
			Namespace: ident.Namespace,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{
					"name": ident.Name,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"name":    ident.Name,
						TestLabel: ident.Name,
					},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "hello",
						Image: image,
						Env:   envVars(env),
					}},
				},
			},
		},
	}
}

// envVars converts an environment map into container env entries in a stable
// order so manifests are reproducible across runs.
func envVars(env map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return vars
}
