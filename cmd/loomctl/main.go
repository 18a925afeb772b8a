package main

import (
	"fmt"
	"os"

	"github.com/cuemby/loom/pkg/kernel"
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "loomctl",
	Short: "loomctl - client for the loom coordination kernel",
	Long: `loomctl is a thin command-line front end over loom, a distributed
file-backed work-coordination engine. Every subcommand maps one-to-one
onto the kernel's public API; loomctl itself holds no coordination logic.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"loomctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "./loom-data", "Root of the on-disk coordination state")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides defaults, overridden by --data-dir)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(janitorCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openKernel wires a FileStore and Kernel from the current command's
// persistent flags. Every leaf command calls this exactly once.
func openKernel(cmd *cobra.Command) (*kernel.Kernel, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := loadConfig(configPath, dataDir)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}

	k, err := kernel.NewKernel(store, cfg, telemetry.DefaultSink())
	if err != nil {
		return nil, err
	}
	return k, nil
}
