package worker

import (
	"context"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/health"
	"github.com/forgeops/orchestrator/pkg/log"
)

// HealthCheckHandler runs a resource health check task: it reads the
// resource ids and provider out of the task's input data and checks each
// one through a health.ResourceChecker.
type HealthCheckHandler struct {
	checker health.ResourceChecker
}

// NewHealthCheckHandler builds a handler over the given checker.
func NewHealthCheckHandler(checker health.ResourceChecker) *HealthCheckHandler {
	return &HealthCheckHandler{checker: checker}
}

// Execute implements Handler.
func (h *HealthCheckHandler) Execute(ctx context.Context, task *domain.Task) (map[string]interface{}, error) {
	resourceIDs := stringSlice(task.InputData["resource_ids"])
	provider := domain.ProviderAWS
	if p, ok := task.InputData["provider"].(string); ok && p != "" {
		provider = domain.CloudProviderType(p)
	}

	results := make(map[string]interface{}, len(resourceIDs))
	allHealthy := true
	for _, resourceID := range resourceIDs {
		healthy, message := h.checker.CheckResource(ctx, provider, resourceID)
		results[resourceID] = map[string]interface{}{"healthy": healthy, "message": message}
		if !healthy {
			allHealthy = false
		}
	}

	log.WithComponent("worker").Info().
		Str("task_id", task.ID).
		Bool("all_healthy", allHealthy).
		Int("checked_count", len(resourceIDs)).
		Msg("health check completed")

	return map[string]interface{}{
		"all_healthy": allHealthy,
		"results":     results,
	}, nil
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		if direct, ok := v.([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
