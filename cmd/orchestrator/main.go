package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgeops/orchestrator/internal/config"
	"github.com/forgeops/orchestrator/pkg/log"
)

var (
	// Version information (set via ldflags during build).
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Multi-cloud deployment orchestrator",
	Long: `orchestrator plans, executes, and tracks drift on infrastructure
deployments across multiple cloud providers, dispatching Terraform-shaped
work to a pool of workers under distributed locking.`,
	Version: Version,
}

var loadedConfig *config.Config

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"orchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Override data directory from config")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level from config (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initConfigAndLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deploymentCmd)
	rootCmd.AddCommand(driftCmd)
}

func initConfigAndLogging() {
	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json"); logJSON {
		cfg.LogJSON = true
	}

	loadedConfig = cfg

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}
