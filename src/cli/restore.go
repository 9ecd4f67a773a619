package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"resource-backup/src/catalog"
	"resource-backup/src/safety"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	var showProgress bool
	cmd := &cobra.Command{
		Use:   "restore " + filterUsage,
		Short: "Restore the most recent matching snapshot onto the resource",
		Long:  "Restore the most recent matching snapshot. Files under the resource that the snapshot does not contain are removed.",
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
			latest, err := svc.Latest(ctx, q)
			if err != nil {
				return err
			}
			if err := renderEntries(stdout, []catalog.Entry{latest}, "restore"); err != nil {
				return err
			}

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			question := fmt.Sprintf("Restore %s onto %s? Files not in the snapshot will be removed.", latest.Name, svc.Config().ResourcePath)
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "aborted")
				return nil
			}

			var progress io.Writer
			if showProgress {
				progress = stderr
			}
			if err := svc.RestoreEntry(ctx, latest, progress); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "restored %s\n", latest.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show transfer progress on stderr")
	return cmd
}
