package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/log"
)

type providerConfig struct {
	source  string
	version string
}

var providerConfigs = map[domain.CloudProviderType]providerConfig{
	domain.ProviderAWS:   {source: "hashicorp/aws", version: "~> 5.0"},
	domain.ProviderAzure: {source: "hashicorp/azurerm", version: "~> 3.0"},
	domain.ProviderGCP:   {source: "hashicorp/google", version: "~> 5.0"},
}

type resourceKey struct {
	provider domain.CloudProviderType
	resource domain.ResourceType
}

var resourceTerraformMap = map[resourceKey]string{
	{domain.ProviderAWS, domain.ResourceCompute}:      "aws_instance",
	{domain.ProviderAWS, domain.ResourceStorage}:      "aws_s3_bucket",
	{domain.ProviderAWS, domain.ResourceDatabase}:     "aws_db_instance",
	{domain.ProviderAWS, domain.ResourceNetwork}:       "aws_vpc",
	{domain.ProviderAWS, domain.ResourceContainer}:     "aws_ecs_cluster",
	{domain.ProviderAWS, domain.ResourceServerless}:    "aws_lambda_function",
	{domain.ProviderAWS, domain.ResourceLoadBalancer}:  "aws_lb",
	{domain.ProviderAWS, domain.ResourceCache}:         "aws_elasticache_cluster",
	{domain.ProviderAzure, domain.ResourceCompute}:     "azurerm_virtual_machine",
	{domain.ProviderAzure, domain.ResourceStorage}:     "azurerm_storage_account",
	{domain.ProviderAzure, domain.ResourceDatabase}:    "azurerm_postgresql_server",
	{domain.ProviderAzure, domain.ResourceNetwork}:     "azurerm_virtual_network",
	{domain.ProviderAzure, domain.ResourceContainer}:   "azurerm_kubernetes_cluster",
	{domain.ProviderGCP, domain.ResourceCompute}:        "google_compute_instance",
	{domain.ProviderGCP, domain.ResourceStorage}:        "google_storage_bucket",
	{domain.ProviderGCP, domain.ResourceDatabase}:       "google_sql_database_instance",
	{domain.ProviderGCP, domain.ResourceNetwork}:         "google_compute_network",
	{domain.ProviderGCP, domain.ResourceContainer}:       "google_container_cluster",
}

// SimulatedTerraformExecutor generates realistic Terraform HCL and
// simulates plan/apply/destroy outcomes without requiring a terraform
// binary or real cloud credentials. It is the only TerraformExecutor
// implementation in this repository; a real binary driver is explicitly
// out of scope.
type SimulatedTerraformExecutor struct {
	baseDir string

	mu    sync.Mutex
	state map[string]map[string]interface{}
}

// NewSimulatedTerraformExecutor constructs an executor rooted at baseDir.
// If baseDir is empty, a temp directory is created.
func NewSimulatedTerraformExecutor(baseDir string) (*SimulatedTerraformExecutor, error) {
	if baseDir == "" {
		dir, err := os.MkdirTemp("", "tf-orchestrator-")
		if err != nil {
			return nil, fmt.Errorf("create executor base dir: %w", err)
		}
		baseDir = dir
	}
	return &SimulatedTerraformExecutor{
		baseDir: baseDir,
		state:   make(map[string]map[string]interface{}),
	}, nil
}

// Init implements TerraformExecutor.
func (e *SimulatedTerraformExecutor) Init(ctx context.Context, workingDir string, provider domain.CloudProviderType) (bool, string, error) {
	cfg, ok := providerConfigs[provider]
	if !ok {
		return false, fmt.Sprintf("unsupported provider: %s", provider), nil
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return false, "", fmt.Errorf("create working dir: %w", err)
	}
	log.WithComponent("executor").Debug().Str("working_dir", workingDir).Str("provider", string(provider)).Str("source", cfg.source).Msg("terraform init")
	if err := sleepOrCancel(ctx, 100*time.Millisecond); err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("Terraform initialized for %s", provider), nil
}

// Plan implements TerraformExecutor.
func (e *SimulatedTerraformExecutor) Plan(ctx context.Context, workingDir string) (bool, string, error) {
	log.WithComponent("executor").Debug().Str("working_dir", workingDir).Msg("terraform plan")
	if err := sleepOrCancel(ctx, 100*time.Millisecond); err != nil {
		return false, "", err
	}
	return true, "Plan: 1 to add, 0 to change, 0 to destroy.", nil
}

// Apply implements TerraformExecutor.
func (e *SimulatedTerraformExecutor) Apply(ctx context.Context, workingDir string, autoApprove bool) (bool, string, error) {
	log.WithComponent("executor").Debug().Str("working_dir", workingDir).Msg("terraform apply")
	if err := sleepOrCancel(ctx, 200*time.Millisecond); err != nil {
		return false, "", err
	}

	resourceID := simResourceID(workingDir)
	e.mu.Lock()
	e.state[resourceID] = map[string]interface{}{
		"status":      "created",
		"working_dir": workingDir,
	}
	e.mu.Unlock()

	return true, "Apply complete! Resources: 1 added, 0 changed, 0 destroyed.", nil
}

// Destroy implements TerraformExecutor.
func (e *SimulatedTerraformExecutor) Destroy(ctx context.Context, workingDir string, autoApprove bool) (bool, string, error) {
	log.WithComponent("executor").Debug().Str("working_dir", workingDir).Msg("terraform destroy")
	if err := sleepOrCancel(ctx, 100*time.Millisecond); err != nil {
		return false, "", err
	}

	resourceID := simResourceID(workingDir)
	e.mu.Lock()
	delete(e.state, resourceID)
	e.mu.Unlock()

	return true, "Destroy complete! Resources: 1 destroyed.", nil
}

// ShowState implements TerraformExecutor.
func (e *SimulatedTerraformExecutor) ShowState(ctx context.Context, workingDir string) (map[string]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]interface{}, len(e.state))
	for k, v := range e.state {
		out[k] = v
	}
	return out, nil
}

// GenerateConfig implements TerraformExecutor. It writes a main.tf file
// to workingDir and returns the generated HCL.
func (e *SimulatedTerraformExecutor) GenerateConfig(ctx context.Context, spec domain.ResourceSpec, workingDir string) (string, error) {
	tfResource, ok := resourceTerraformMap[resourceKey{spec.Provider, spec.ResourceType}]
	if !ok {
		tfResource = fmt.Sprintf("%s_%s", spec.Provider, spec.ResourceType)
	}
	cfg := providerConfigs[spec.Provider]
	source := cfg.source
	if source == "" {
		source = "hashicorp/" + string(spec.Provider)
	}
	version := cfg.version
	if version == "" {
		version = "~> 1.0"
	}

	hcl := fmt.Sprintf(`terraform {
  required_providers {
    %s = {
      source  = "%s"
      version = "%s"
    }
  }
}

resource "%s" "%s" {
  # Region: %s
`, spec.Provider, source, version, tfResource, spec.Name, spec.Region)

	for _, key := range sortedKeys(spec.Properties) {
		value := spec.Properties[key]
		if s, ok := value.(string); ok {
			hcl += fmt.Sprintf("  %s = %q\n", key, s)
		} else {
			encoded, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("encode property %s: %w", key, err)
			}
			hcl += fmt.Sprintf("  %s = %s\n", key, encoded)
		}
	}

	if len(spec.Tags) > 0 {
		hcl += "\n  tags = {\n"
		for _, key := range sortedTagKeys(spec.Tags) {
			hcl += fmt.Sprintf("    %s = %q\n", key, spec.Tags[key])
		}
		hcl += "  }\n"
	}
	hcl += "}\n"

	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return "", fmt.Errorf("create working dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workingDir, "main.tf"), []byte(hcl), 0o644); err != nil {
		return "", fmt.Errorf("write main.tf: %w", err)
	}

	return hcl, nil
}

func simResourceID(workingDir string) string {
	return "sim-" + filepath.Base(workingDir)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTagKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
