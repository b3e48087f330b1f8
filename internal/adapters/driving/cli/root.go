// Package cli provides the cobra command surface for the announcement
// ingestion pipeline.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/annsync/internal/core/ports/driven"
	"github.com/custodia-labs/annsync/internal/core/ports/driving"
	"github.com/custodia-labs/annsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services. main wires these through SetServices, either
// directly or from the bootstrap callback.
var (
	ingestor    driving.Ingestor
	scheduler   driving.RunScheduler
	cursorStore driven.CursorStore
)

// bootstrap builds the services once the --config flag is parsed.
// Commands that don't need services (version, help) skip it.
var bootstrap func(configPath string) error

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "annsync",
	Short: "Announcement ingestion and synchronization pipeline",
	Long: `annsync ingests corporate disclosure announcements from configured
sources, normalises them into a canonical form, durably stores their
attachments and keeps a per-source sync cursor so runs are incremental
and idempotent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}
		if bootstrap == nil {
			return nil
		}
		return bootstrap(configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file")
}

// SetServices injects the driving-side dependencies.
func SetServices(ing driving.Ingestor, sched driving.RunScheduler, cursors driven.CursorStore) {
	ingestor = ing
	scheduler = sched
	cursorStore = cursors
}

// SetBootstrap registers the deferred wiring callback, called once the
// command line is parsed and before any service-backed command runs.
func SetBootstrap(fn func(configPath string) error) {
	bootstrap = fn
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
