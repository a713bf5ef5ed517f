// Package commands defines all Cobra CLI commands for the docintel binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docintel-go/internal/audit"
	"github.com/54b3r/docintel-go/internal/config"
	"github.com/54b3r/docintel-go/internal/logging"
)

// configPath holds the --config flag value for the config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docintel",
		Short: "docintel: question answering, summaries and comparisons over your documents",
		Long: `docintel ingests PDF and text documents, deduplicates them by content and
answers questions about them. Queries are classified as document questions,
summaries, comparisons or general chat and routed to the matching handler.

The generation backend is selected via the MODEL_PROVIDER environment variable
or a YAML/TOML config file (~/.docintel/config.yaml).
See 'docintel --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load the config file (env vars always override file values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file (default: ~/.docintel/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewSummarizeCmd(),
		NewCompareCmd(),
		NewVersionCmd(),
	)

	return root
}
