package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeops/orchestrator/pkg/deployment"
	"github.com/forgeops/orchestrator/pkg/domain"
	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/lock"
	"github.com/forgeops/orchestrator/pkg/planner"
)

var deploymentCmd = &cobra.Command{
	Use:   "deployment",
	Short: "Create, plan, approve, execute, and inspect deployments",
}

var deploymentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new deployment in PENDING state",
	RunE:  runDeploymentCreate,
}

var deploymentPlanCmd = &cobra.Command{
	Use:   "plan <deployment-id>",
	Short: "Generate and attach an execution plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentPlan,
}

var deploymentApproveCmd = &cobra.Command{
	Use:   "approve <deployment-id>",
	Short: "Approve a planned deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentApprove,
}

var deploymentExecuteCmd = &cobra.Command{
	Use:   "execute <deployment-id>",
	Short: "Materialize tasks for an approved deployment's plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentExecute,
}

var deploymentRollbackCmd = &cobra.Command{
	Use:   "rollback <deployment-id>",
	Short: "Roll back a deployment and enqueue compensating destroy tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentRollback,
}

var deploymentShowCmd = &cobra.Command{
	Use:   "show <deployment-id>",
	Short: "Print a deployment as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentShow,
}

var deploymentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployments by status",
	RunE:  runDeploymentList,
}

func init() {
	deploymentCreateCmd.Flags().String("environment", "staging", "Target environment")
	deploymentCreateCmd.Flags().String("provider", "aws", "Target cloud provider (aws, azure, gcp)")
	deploymentCreateCmd.Flags().String("region", "us-east-1", "Target region")
	deploymentCreateCmd.Flags().String("resource-type", "compute", "Resource type for the single resource spec")
	deploymentCreateCmd.Flags().String("resource-name", "main", "Resource name")
	deploymentCreateCmd.Flags().String("strategy", string(domain.StrategyRolling), "Deployment strategy (rolling, blue_green, canary, recreate)")
	deploymentCreateCmd.Flags().Bool("auto-approve", false, "Skip the manual approval gate")
	deploymentCreateCmd.Flags().Bool("rollback-on-failure", true, "Automatically roll back if any task fails")
	deploymentCreateCmd.Flags().String("initiated-by", "cli", "Identity recorded as the initiator")
	deploymentCreateCmd.Flags().String("tenant-id", "default", "Owning tenant")

	deploymentListCmd.Flags().String("status", "", "Filter by status (empty lists PENDING)")
	deploymentListCmd.Flags().Int("limit", 20, "Maximum results")
	deploymentListCmd.Flags().Int("offset", 0, "Result offset")

	deploymentCmd.AddCommand(deploymentCreateCmd, deploymentPlanCmd, deploymentApproveCmd,
		deploymentExecuteCmd, deploymentRollbackCmd, deploymentShowCmd, deploymentListCmd)
}

// newDeploymentService opens the configured store for the lifetime of a
// single CLI invocation and wires a deployment.Service against it. The
// returned close func must run after the command's work is done.
func newDeploymentService() (*deployment.Service, func(), error) {
	repos, closeStore, err := openStore(loadedConfig)
	if err != nil {
		return nil, nil, err
	}

	broker := eventbus.NewBroker()
	broker.Start()
	publisher := eventbus.NewInMemoryPublisher(broker)

	var locker lock.DistributedLock
	if loadedConfig.RedisAddr != "" {
		if redisLock, err := lock.NewRedisLock("redis://" + loadedConfig.RedisAddr); err == nil {
			locker = redisLock
		}
	}
	if locker == nil {
		locker = lock.NewMemoryLock()
	}

	svc := deployment.NewService(repos.Deployments(), repos.Tasks(), planner.NewRuleBasedEngine(), publisher, locker)

	closeAll := func() {
		broker.Stop()
		closeStore()
	}
	return svc, closeAll, nil
}

func runDeploymentCreate(cmd *cobra.Command, _ []string) error {
	svc, closeAll, err := newDeploymentService()
	if err != nil {
		return err
	}
	defer closeAll()

	environment, _ := cmd.Flags().GetString("environment")
	provider, _ := cmd.Flags().GetString("provider")
	region, _ := cmd.Flags().GetString("region")
	resourceType, _ := cmd.Flags().GetString("resource-type")
	resourceName, _ := cmd.Flags().GetString("resource-name")
	strategy, _ := cmd.Flags().GetString("strategy")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	rollbackOnFailure, _ := cmd.Flags().GetBool("rollback-on-failure")
	initiatedBy, _ := cmd.Flags().GetString("initiated-by")
	tenantID, _ := cmd.Flags().GetString("tenant-id")

	providerType := domain.CloudProviderType(provider)
	intent := domain.DeploymentIntent{
		Description:       fmt.Sprintf("%s deployment to %s", resourceName, environment),
		TargetProviders:   []domain.CloudProviderType{providerType},
		TargetRegions:     []string{region},
		Strategy:          domain.DeploymentStrategy(strategy),
		AutoApprove:       autoApprove,
		RollbackOnFailure: rollbackOnFailure,
		Environment:       environment,
		Resources: []domain.ResourceSpec{
			{
				ResourceType: domain.ResourceType(resourceType),
				Provider:     providerType,
				Region:       region,
				Name:         resourceName,
			},
		},
	}

	d, err := svc.CreateDeployment(context.Background(), intent, initiatedBy, tenantID)
	if err != nil {
		return err
	}
	fmt.Printf("created deployment %s (status=%s)\n", d.ID, d.Status)
	return nil
}

func runDeploymentPlan(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := newDeploymentService()
	if err != nil {
		return err
	}
	defer closeAll()

	d, err := svc.PlanDeployment(context.Background(), args[0])
	if err != nil {
		return err
	}
	steps := 0
	if d.Plan != nil {
		steps = d.Plan.StepCount()
	}
	fmt.Printf("planned deployment %s: %d steps (status=%s)\n", d.ID, steps, d.Status)
	return nil
}

func runDeploymentApprove(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := newDeploymentService()
	if err != nil {
		return err
	}
	defer closeAll()

	d, err := svc.ApproveDeployment(context.Background(), args[0], "cli")
	if err != nil {
		return err
	}
	fmt.Printf("approved deployment %s (status=%s)\n", d.ID, d.Status)
	return nil
}

func runDeploymentExecute(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := newDeploymentService()
	if err != nil {
		return err
	}
	defer closeAll()

	tasks, err := svc.ExecuteDeployment(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("queued %d tasks for deployment %s\n", len(tasks), args[0])
	return nil
}

func runDeploymentRollback(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := newDeploymentService()
	if err != nil {
		return err
	}
	defer closeAll()

	d, err := svc.RollbackDeployment(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("rolling back deployment %s (status=%s)\n", d.ID, d.Status)
	return nil
}

func runDeploymentShow(cmd *cobra.Command, args []string) error {
	repos, closeStore, err := openStore(loadedConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	d, err := repos.Deployments().GetByID(context.Background(), args[0])
	if err != nil {
		return err
	}
	if d == nil {
		return &deployment.NotFoundError{DeploymentID: args[0]}
	}
	return printJSON(d)
}

func runDeploymentList(cmd *cobra.Command, _ []string) error {
	repos, closeStore, err := openStore(loadedConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	if status == "" {
		status = string(domain.DeploymentPending)
	}

	deployments, err := repos.Deployments().ListByStatus(context.Background(), domain.DeploymentStatus(status), limit, offset)
	if err != nil {
		return err
	}
	return printJSON(deployments)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
