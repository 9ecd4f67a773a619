package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCreateCmd(stdout, stderr io.Writer) *cobra.Command {
	var showProgress bool
	cmd := &cobra.Command{
		Use:   "create [GROUP...]",
		Short: "Snapshot the configured resource into storage",
		Long:  "Snapshot the configured resource. Every snapshot belongs to the groups <name> and <created_at>; extra GROUP arguments are appended in order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			cfg := svc.Config()
			if getSafetyOptions(cmd).DryRun {
				fmt.Fprintf(stdout, "[dry-run] would snapshot %s %s into %s\n", cfg.ResourceType, cfg.ResourcePath, cfg.StoragePath)
				return nil
			}
			var progress io.Writer
			if showProgress {
				progress = stderr
			}
			e, err := svc.Create(commandContext(cmd), args, progress)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "created %s at %s\n", e.Name, e.Meta.BackupPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show transfer progress on stderr")
	return cmd
}
