package domain

import "fmt"

// CloudProviderType identifies a supported cloud provider.
type CloudProviderType string

const (
	ProviderAWS   CloudProviderType = "aws"
	ProviderAzure CloudProviderType = "azure"
	ProviderGCP   CloudProviderType = "gcp"
)

// ResourceType identifies the kind of cloud resource a step provisions.
type ResourceType string

const (
	ResourceCompute      ResourceType = "compute"
	ResourceStorage      ResourceType = "storage"
	ResourceDatabase     ResourceType = "database"
	ResourceNetwork      ResourceType = "network"
	ResourceContainer    ResourceType = "container"
	ResourceServerless   ResourceType = "serverless"
	ResourceLoadBalancer ResourceType = "load_balancer"
	ResourceDNS          ResourceType = "dns"
	ResourceCDN          ResourceType = "cdn"
	ResourceQueue        ResourceType = "queue"
	ResourceCache        ResourceType = "cache"
)

// CloudRegion describes a region offered by a provider.
type CloudRegion struct {
	Provider    CloudProviderType `json:"provider"`
	RegionID    string            `json:"region_id"`
	DisplayName string            `json:"display_name"`
	Available   bool              `json:"available"`
}

// CloudCredential is a reference to a credential held by a secrets
// manager; it never carries the secret value itself.
type CloudCredential struct {
	Provider         CloudProviderType `json:"provider"`
	CredentialRef    string            `json:"credential_ref"`
	RoleARN          string            `json:"role_arn,omitempty"`
	ProjectID        string            `json:"project_id,omitempty"`
	SubscriptionID   string            `json:"subscription_id,omitempty"`
}

// ResourceSpec fully describes a single cloud resource to be provisioned.
type ResourceSpec struct {
	ResourceType ResourceType           `json:"resource_type"`
	Provider     CloudProviderType      `json:"provider"`
	Region       string                 `json:"region"`
	Name         string                 `json:"name"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
	Tags         map[string]string      `json:"tags,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty"`
}

// ResourceIdentifier is the stable key used to correlate a resource spec
// across the plan, the expected-state map, and the drift detector.
func (r ResourceSpec) ResourceIdentifier() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Provider, r.Region, r.ResourceType, r.Name)
}

// AsMap renders the resource spec as the flat map shape the drift
// pipeline uses to build expected/actual state snapshots.
func (r ResourceSpec) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"resource_type": string(r.ResourceType),
		"provider":      string(r.Provider),
		"region":        r.Region,
		"name":          r.Name,
	}
	for k, v := range r.Properties {
		m[k] = v
	}
	return m
}

// ProviderCapability describes a cloud provider's support for a resource
// type in Terraform terms. Not consumed by the planner directly; it is
// surfaced to callers that need to validate intents against what a given
// provider account can actually provision.
type ProviderCapability struct {
	Provider              CloudProviderType `json:"provider"`
	ResourceType          ResourceType      `json:"resource_type"`
	TerraformProvider     string            `json:"terraform_provider"`
	TerraformResourceType string            `json:"terraform_resource_type"`
	SupportedRegions      []string          `json:"supported_regions,omitempty"`
	DefaultProperties     map[string]interface{} `json:"default_properties,omitempty"`
}
