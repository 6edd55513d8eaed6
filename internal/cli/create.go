// internal/cli/create.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arc-language/envboot/pkg/core"
)

func (a *app) newCreateCmd() *cobra.Command {
	var (
		exclusive  bool
		saveConfig string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the environment (no-op if it already exists)",
		Long: `Create an isolated environment at the configured root.

Creating an environment that already exists returns it unchanged unless
--exclusive is given.

Examples:
  envboot create
  envboot create --root build/.venv --backend uv
  envboot create --exclusive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := a.orchestrator()
			e, err := o.Create(cmd.Context(), exclusive)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("✓ Environment ready:"), NameStyle.Render(e.Root))
			if e.Backend != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", SubtitleStyle.Render("backend:"), e.Backend)
			}

			if saveConfig != "" {
				if err := core.SaveConfig(a.config, saveConfig); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", SubtitleStyle.Render("config saved to"), saveConfig)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "fail if the environment already exists")
	cmd.Flags().StringVar(&saveConfig, "save-config", "", "write the effective configuration to this file")
	return cmd
}
