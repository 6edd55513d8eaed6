// internal/cli/status.go
package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
)

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the environment and its recorded packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			o := a.orchestrator()
			m := o.Manager()

			// Adopt an activation inherited from the shell
			current := m.Current()

			fmt.Fprintf(out, "%s %s\n", TitleStyle.Render("Environment"), NameStyle.Render(o.Root()))

			e, err := m.Load(o.Root())
			if err != nil {
				if !errors.Is(err, core.ErrEnvironmentNotFound) {
					return err
				}
				fmt.Fprintf(out, "  %-9s %s\n", "state:", env.StateUninitialized)
				if current != nil {
					fmt.Fprintf(out, "  %-9s %s\n", "active:", current.Env.Root)
				}
				return nil
			}

			fmt.Fprintf(out, "  %-9s %s\n", "state:", m.State(e))
			fmt.Fprintf(out, "  %-9s %s\n", "backend:", e.Backend)
			if e.Python != "" {
				fmt.Fprintf(out, "  %-9s %s\n", "python:", e.Python)
			}
			fmt.Fprintf(out, "  %-9s %s\n", "created:", e.CreatedAt)
			if e.UpdatedAt != "" {
				fmt.Fprintf(out, "  %-9s %s\n", "updated:", e.UpdatedAt)
			}
			if current != nil && !m.IsActive(e) {
				fmt.Fprintf(out, "  %-9s %s\n", "active:", WarningStyle.Render(current.Env.Root))
			}

			if len(e.Packages) == 0 {
				fmt.Fprintln(out, SubtitleStyle.Render("\nNo packages recorded"))
				return nil
			}

			names := make([]string, 0, len(e.Packages))
			for name := range e.Packages {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Fprintf(out, "\n%s\n", TitleStyle.Render(fmt.Sprintf("Packages (%d)", len(names))))
			for _, name := range names {
				fmt.Fprintf(out, "  %s %s\n", NameStyle.Render(name), SubtitleStyle.Render(e.Packages[name]))
			}
			return nil
		},
	}
}
