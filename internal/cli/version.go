package cli

import (
	"fmt"

	"github.com/RCR0101/transcriber/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "transcriber v%s\n", version.Resolve())
			return nil
		},
	}
}
