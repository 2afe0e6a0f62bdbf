package cluster

import (
	"fmt"

	"github.com/google/uuid"
)

// RandomName returns a DNS-label-safe name unique enough for concurrently
// provisioned namespaces and deployments.
func RandomName() string {
	id := uuid.New()
	return fmt.Sprintf("probeharness-%s", id.String()[:8])
}

// NewIdent returns a fresh Ident with random namespace and deployment names.
func NewIdent() Ident {
	return Ident{
		Namespace: RandomName(),
		Name:      RandomName(),
	}
}
