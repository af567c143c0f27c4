// Package cli wires the commands: sync, scan, history, config, version.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/collsync/internal/config"
	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
	"github.com/dl-alexandre/collsync/pkg/version"
)

var (
	globalFlags types.GlobalFlags
	logger      logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "collsync",
	Short: "Collection sync - upload local photo folders to a remote CMS",
	Long: `collsync mirrors per-user photo folders into remote collections.
Folders become collections, files become items; uploaded content is
moved to an archive or deleted per folder policy.

All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		logConfig := logging.DefaultLogConfig()
		logConfig.OutputFile = globalFlags.LogFile
		logConfig.EnableConsole = !globalFlags.Quiet
		if globalFlags.Verbose || globalFlags.Debug {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		var err error
		logger, err = logging.NewLogger(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.DryRun, "dry-run", false, "Show what would be done without making changes")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s", globalFlags.OutputFormat)
	}
	return nil
}

// loadConfig reads the configuration, applies flag overrides and resolves
// any keyring-backed credentials.
func loadConfig() (*config.Config, error) {
	path := globalFlags.Config
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if globalFlags.DryRun {
		cfg.DryRun = true
	}
	if cfg.LogLevel != "" && !globalFlags.Verbose && !globalFlags.Debug {
		logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	if err := config.ResolveCredentials(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command, mapping error codes to exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(utils.GetExitCode(utils.CodeOf(err)))
	}
	if logger != nil {
		_ = logger.Close()
	}
}
