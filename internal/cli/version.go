// internal/cli/version.go
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "envboot version %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
			fmt.Fprintln(cmd.OutOrStdout(), "https://github.com/arc-language/envboot")
		},
	}
}
