// internal/cli/backends.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arc-language/envboot/pkg/registry"
)

func (a *app) newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List installation backends and which are usable here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			plat := a.orchestrator().Platform()

			fmt.Fprintf(out, "%s %s/%s\n", TitleStyle.Render("Platform:"), plat.OS, plat.Arch)
			fmt.Fprintf(out, "%s %s\n\n", TitleStyle.Render("Configured:"), a.config.Backend)

			if len(plat.Available) == 0 {
				fmt.Fprintln(out, WarningStyle.Render("No backend available (install python3 or uv, or set --archive-dir)"))
			} else {
				fmt.Fprintln(out, TitleStyle.Render("Available:"))
				for _, name := range plat.Available {
					marker := " "
					if name == plat.Preferred {
						marker = SuccessStyle.Render("*")
					}
					fmt.Fprintf(out, "  %s %s\n", marker, name)
				}
			}

			fmt.Fprintf(out, "\n%s\n", TitleStyle.Render("Registered:"))
			for _, name := range registry.Available() {
				fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render(name))
			}
			return nil
		},
	}
}
