package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/executor"
	"github.com/forgeops/orchestrator/pkg/log"
)

// ExecutionError wraps a failed Terraform phase (init/plan/apply/destroy).
type ExecutionError struct {
	Phase  string
	Output string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Phase, e.Output)
}

// TerraformHandler drives a resource spec through
// generate_config -> init -> plan -> apply|destroy against a
// TerraformExecutor.
type TerraformHandler struct {
	terraform   executor.TerraformExecutor
	workDirBase string
}

// NewTerraformHandler builds a handler rooted at a fresh temp directory
// under the OS default temp root.
func NewTerraformHandler(tf executor.TerraformExecutor) (*TerraformHandler, error) {
	base, err := os.MkdirTemp("", "tf-worker-")
	if err != nil {
		return nil, fmt.Errorf("create terraform handler work dir: %w", err)
	}
	return &TerraformHandler{terraform: tf, workDirBase: base}, nil
}

// Execute implements Handler.
func (h *TerraformHandler) Execute(ctx context.Context, task *domain.Task) (map[string]interface{}, error) {
	specMap, _ := task.InputData["resource_spec"].(map[string]interface{})
	spec := resourceSpecFromMap(specMap)
	workDir := filepath.Join(h.workDirBase, task.DeploymentID, task.StepID)

	log.WithComponent("worker").Info().
		Str("task_id", task.ID).
		Str("action", task.TerraformAction).
		Str("provider", string(spec.Provider)).
		Str("resource", spec.Name).
		Msg("terraform task executing")

	if _, err := h.terraform.GenerateConfig(ctx, spec, workDir); err != nil {
		return nil, fmt.Errorf("generate config: %w", err)
	}
	if err := h.runPhase(ctx, "init", func() (bool, string, error) {
		return h.terraform.Init(ctx, workDir, spec.Provider)
	}); err != nil {
		return nil, err
	}
	if err := h.runPhase(ctx, "plan", func() (bool, string, error) {
		return h.terraform.Plan(ctx, workDir)
	}); err != nil {
		return nil, err
	}
	if err := h.applyAction(ctx, task.TerraformAction, workDir); err != nil {
		return nil, err
	}

	state, err := h.terraform.ShowState(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("show state: %w", err)
	}

	return map[string]interface{}{
		"action":   task.TerraformAction,
		"resource": spec.Name,
		"provider": string(spec.Provider),
		"state":    state,
		"work_dir": workDir,
	}, nil
}

func (h *TerraformHandler) runPhase(_ context.Context, name string, phase func() (bool, string, error)) error {
	success, output, err := phase()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !success {
		return &ExecutionError{Phase: name, Output: output}
	}
	return nil
}

func (h *TerraformHandler) applyAction(ctx context.Context, action, workDir string) error {
	switch action {
	case "create", "update":
		return h.runPhase(ctx, "apply", func() (bool, string, error) {
			return h.terraform.Apply(ctx, workDir, true)
		})
	case "destroy":
		return h.runPhase(ctx, "destroy", func() (bool, string, error) {
			return h.terraform.Destroy(ctx, workDir, true)
		})
	default:
		return nil
	}
}

func resourceSpecFromMap(m map[string]interface{}) domain.ResourceSpec {
	spec := domain.ResourceSpec{
		Properties: map[string]interface{}{},
		Tags:       map[string]string{},
	}
	if m == nil {
		return spec
	}
	if v, ok := m["resource_type"].(string); ok {
		spec.ResourceType = domain.ResourceType(v)
	}
	if v, ok := m["provider"].(string); ok {
		spec.Provider = domain.CloudProviderType(v)
	}
	if v, ok := m["region"].(string); ok {
		spec.Region = v
	}
	if v, ok := m["name"].(string); ok {
		spec.Name = v
	}
	if v, ok := m["properties"].(map[string]interface{}); ok {
		spec.Properties = v
	}
	if v, ok := m["tags"].(map[string]interface{}); ok {
		tags := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				tags[k] = s
			}
		}
		spec.Tags = tags
	}
	if v, ok := m["dependencies"].([]interface{}); ok {
		deps := make([]string, 0, len(v))
		for _, d := range v {
			if s, ok := d.(string); ok {
				deps = append(deps, s)
			}
		}
		spec.Dependencies = deps
	}
	return spec
}
