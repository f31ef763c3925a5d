package health

import (
	"context"
	"fmt"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// ResourceChecker checks the health of a single deployed cloud resource
// and summarizes the health of an entire deployment. Where a resource id
// has an endpoint registered with it, HTTPResourceChecker probes it with
// the existing HTTPChecker; a resource with no registered endpoint
// reports unhealthy rather than falling back to SimulatedResourceChecker.
type ResourceChecker interface {
	CheckResource(ctx context.Context, provider domain.CloudProviderType, resourceID string) (bool, string)
	CheckDeployment(ctx context.Context, deploymentID string) map[string]interface{}
}

// SimulatedResourceChecker reports every resource as healthy, matching
// the development-mode behavior of a provider that has no real health
// endpoint wired in yet.
type SimulatedResourceChecker struct{}

// NewSimulatedResourceChecker constructs the always-healthy checker.
func NewSimulatedResourceChecker() *SimulatedResourceChecker {
	return &SimulatedResourceChecker{}
}

// CheckResource implements ResourceChecker.
func (SimulatedResourceChecker) CheckResource(_ context.Context, _ domain.CloudProviderType, resourceID string) (bool, string) {
	return true, fmt.Sprintf("resource %s is healthy", resourceID)
}

// CheckDeployment implements ResourceChecker.
func (SimulatedResourceChecker) CheckDeployment(_ context.Context, deploymentID string) map[string]interface{} {
	return map[string]interface{}{
		"deployment_id": deploymentID,
		"status":        "healthy",
		"checks":        map[string]interface{}{},
	}
}

// HTTPResourceChecker checks a resource by its registered HTTP health
// endpoint, reusing this package's HTTPChecker and its hysteresis-free
// single-shot Check. Resources without a registered endpoint report
// unhealthy-unknown rather than silently passing.
type HTTPResourceChecker struct {
	endpoints map[string]string
}

// NewHTTPResourceChecker builds a checker over a static resourceID ->
// health endpoint URL map, typically populated from each resource
// spec's tags at deployment time.
func NewHTTPResourceChecker(endpoints map[string]string) *HTTPResourceChecker {
	return &HTTPResourceChecker{endpoints: endpoints}
}

// CheckResource implements ResourceChecker.
func (c *HTTPResourceChecker) CheckResource(ctx context.Context, _ domain.CloudProviderType, resourceID string) (bool, string) {
	url, ok := c.endpoints[resourceID]
	if !ok {
		return false, fmt.Sprintf("no health endpoint registered for resource %s", resourceID)
	}
	result := NewHTTPChecker(url).Check(ctx)
	return result.Healthy, result.Message
}

// CheckDeployment implements ResourceChecker. It checks every resource
// with a registered endpoint and reports unhealthy if any failed.
func (c *HTTPResourceChecker) CheckDeployment(ctx context.Context, deploymentID string) map[string]interface{} {
	checks := make(map[string]interface{}, len(c.endpoints))
	allHealthy := true
	for resourceID := range c.endpoints {
		healthy, message := c.CheckResource(ctx, "", resourceID)
		checks[resourceID] = map[string]interface{}{"healthy": healthy, "message": message}
		if !healthy {
			allHealthy = false
		}
	}
	status := "healthy"
	if !allHealthy {
		status = "unhealthy"
	}
	return map[string]interface{}{
		"deployment_id": deploymentID,
		"status":        status,
		"checks":        checks,
	}
}
