package cli

import (
	"github.com/spf13/cobra"

	"resource-backup/src/logging"
	"resource-backup/src/safety"
)

// addGlobalFlags adds persistent config, logging and safety flags to the root command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the backup config (YAML or JSON)")
	cmd.PersistentFlags().String("target", "", "Override the storage location (e.g., local:/mnt/backups, ssh://user@host:22/srv/backups)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress and skipped archives")
	cmd.PersistentFlags().Bool("debug", false, "Log debug details, including external commands")
	cmd.PersistentFlags().String("log-format", "console", "Log format: console|json")
	cmd.PersistentFlags().Bool("dry-run", false, "Show planned actions without making changes")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}

func getLoggingConfig(cmd *cobra.Command) logging.Config {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
	format, _ := cmd.Root().PersistentFlags().GetString("log-format")
	return logging.Config{Verbose: verbose, Debug: debug, Format: format, Output: cmd.ErrOrStderr()}
}
