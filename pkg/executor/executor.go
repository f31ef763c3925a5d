// Package executor defines the TerraformExecutor port through which the
// worker agents drive infrastructure provisioning, plus a simulated
// implementation used until a real Terraform binary driver is wired in.
package executor

import (
	"context"

	"github.com/forgeops/orchestrator/pkg/domain"
)

// TerraformExecutor drives the init/plan/apply/destroy lifecycle of a
// single working directory against a cloud provider. A concrete binary
// driver (shelling out to the terraform CLI) is out of scope here; only
// the port and a simulated stand-in are implemented.
type TerraformExecutor interface {
	Init(ctx context.Context, workingDir string, provider domain.CloudProviderType) (bool, string, error)
	Plan(ctx context.Context, workingDir string) (bool, string, error)
	Apply(ctx context.Context, workingDir string, autoApprove bool) (bool, string, error)
	Destroy(ctx context.Context, workingDir string, autoApprove bool) (bool, string, error)
	ShowState(ctx context.Context, workingDir string) (map[string]interface{}, error)
	GenerateConfig(ctx context.Context, spec domain.ResourceSpec, workingDir string) (string, error)
}
