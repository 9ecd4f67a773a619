package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"resource-backup/src/backup/service"
	"resource-backup/src/catalog"
	"resource-backup/src/errs"
)

const filterUsage = "[name NAME | groups GROUP...]"

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list " + filterUsage,
		Short: "List snapshots of the configured resource, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := catalog.ParseQuery(args)
			if err != nil {
				return err
			}
			if output != "table" && output != "json" {
				return errs.Validation("unsupported --output: %s", output)
			}
			svc, closeFn, err := openService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			summaries, err := svc.List(commandContext(cmd), q)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(stdout, summaries)
			}
			return renderTable(stdout, summaries)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func newDescribeCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "describe " + filterUsage,
		Short: "Print full metadata of matching snapshots as JSON",
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

			entries, err := svc.Describe(commandContext(cmd), q)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []catalog.Entry{}
			}
			return writeJSON(stdout, entries)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, summaries []service.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tGROUPS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.CreatedAt, strings.Join(s.Groups, ","))
	}
	return tw.Flush()
}

func renderEntries(w io.Writer, entries []catalog.Entry, action string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tPATH\tACTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.CreatedAt, e.Meta.BackupPath, action)
	}
	return tw.Flush()
}
