// Package cluster wraps the Kubernetes control plane behind the narrow
// surface the harness needs: namespace and deployment provisioning, manifest
// application, idempotent teardown, and the observable webserver fixture.
//
// The implementation uses controller-runtime for API access. Tests substitute
// a fake client via NewClientFor.
package cluster
