package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"resource-backup/src/version"
)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "resource-backup %s\n", version.Version)
		},
	}
}
