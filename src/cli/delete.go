package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"resource-backup/src/backup/service"
	"resource-backup/src/catalog"
	"resource-backup/src/safety"
)

func newDeleteCmd(stdout, stderr io.Writer) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "delete " + filterUsage,
		Short: "Delete every matching snapshot",
		Long:  "Delete every matching snapshot. Without a filter all snapshots of the configured resource are deleted. Deletion is irreversible.",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := catalog.ParseQuery(args)
			if err != nil {
				return err
			}
			svc, closeFn, err := openService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := commandContext(cmd)
			entries, err := svc.Entries(ctx, q)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "no matching snapshots")
				return nil
			}
			if err := renderEntries(stdout, entries, "delete"); err != nil {
				return err
			}

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout, fmt.Sprintf("Delete %d snapshots?", len(entries)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "aborted")
				return nil
			}

			mode := service.FailFast
			if keepGoing {
				mode = service.BestEffort
			}
			removed, err := svc.DeleteEntries(ctx, entries, mode)
			for _, e := range removed {
				fmt.Fprintf(stdout, "deleted %s\n", e.Name)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Attempt every deletion and report all failures instead of stopping at the first")
	return cmd
}
