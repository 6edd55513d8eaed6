// internal/cli/activate.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addShellFlag registers --shell on fs
func addShellFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVar(target, "shell", "", "shell dialect of the printed script (bash, zsh, sh; default from $SHELL)")
}

func (a *app) newActivateCmd() *cobra.Command {
	var shell string

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Print shell code that activates the environment",
		Long: `Activate the environment and print the variable changes as shell code.

A child process cannot change its parent shell, so evaluate the output:

  eval "$(envboot activate)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			act, err := a.orchestrator().Activate()
			if err != nil {
				return err
			}

			script, err := act.Script(shellFlag(shell))
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
