package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/forgeops/orchestrator/pkg/drift"
	"github.com/forgeops/orchestrator/pkg/eventbus"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Scan deployments for configuration drift and inspect scan history",
}

var driftScanCmd = &cobra.Command{
	Use:   "scan <deployment-id>",
	Short: "Scan a deployment for drift and persist the report",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriftScan,
}

var driftHistoryCmd = &cobra.Command{
	Use:   "history <deployment-id>",
	Short: "List past drift reports for a deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriftHistory,
}

func init() {
	driftScanCmd.Flags().Float64("drift-probability", 0.1, "Simulated per-resource drift probability")
	driftHistoryCmd.Flags().Int("limit", 10, "Maximum reports to return")

	driftCmd.AddCommand(driftScanCmd, driftHistoryCmd)
}

func newDriftService(driftProbability float64) (*drift.DomainService, func(), error) {
	repos, closeStore, err := openStore(loadedConfig)
	if err != nil {
		return nil, nil, err
	}

	broker := eventbus.NewBroker()
	broker.Start()
	publisher := eventbus.NewInMemoryPublisher(broker)

	svc := drift.NewDomainService(repos.Deployments(), repos.DriftReports(), drift.NewSimulatedDetector(driftProbability), publisher)

	closeAll := func() {
		broker.Stop()
		closeStore()
	}
	return svc, closeAll, nil
}

func runDriftScan(cmd *cobra.Command, args []string) error {
	driftProbability, _ := cmd.Flags().GetFloat64("drift-probability")
	svc, closeAll, err := newDriftService(driftProbability)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := svc.ScanDeployment(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runDriftHistory(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := newDriftService(0.1)
	if err != nil {
		return err
	}
	defer closeAll()

	limit, _ := cmd.Flags().GetInt("limit")
	reports, err := svc.GetDriftHistory(context.Background(), args[0], limit)
	if err != nil {
		return err
	}
	return printJSON(reports)
}
