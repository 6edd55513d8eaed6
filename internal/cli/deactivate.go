// internal/cli/deactivate.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newDeactivateCmd() *cobra.Command {
	var shell string

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Print shell code that restores the pre-activation variables",
		Long: `Deactivate the active environment and print the restoring shell code.
Prints nothing when no environment is active.

  eval "$(envboot deactivate)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			act, err := a.orchestrator().Deactivate()
			if err != nil {
				return err
			}
			if act == nil {
				a.logger.Debug("no active environment")
				return nil
			}

			script, err := act.RestoreScript(shellFlag(shell))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), script)
			return nil
		},
	}

	addShellFlag(cmd.Flags(), &shell)
	return cmd
}
