// internal/cli/bootstrap.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newBootstrapCmd() *cobra.Command {
	var (
		printEnv bool
		shell    string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap [manifest]",
		Short: "Create, activate and install in one step",
		Long: `Create the environment if needed, activate it and install the manifest.

Running bootstrap again converges: nothing already satisfied is reinstalled.
With --print-env the report goes to stderr and the activation script to
stdout, so the environment can be kept in the calling shell:

  eval "$(envboot bootstrap --print-env)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			out := cmd.OutOrStdout()
			if printEnv {
				out = cmd.ErrOrStderr()
			}

			result, err := a.orchestrator().Bootstrap(cmd.Context(), path)
			if result == nil {
				return err
			}
			printReport(out, result.Report)

			if printEnv && !result.Reused {
				script, scriptErr := result.Activation.Script(shellFlag(shell))
				if scriptErr != nil {
					return scriptErr
				}
				fmt.Fprint(cmd.OutOrStdout(), script)
			}

			if err != nil {
				if isCancelled(err) {
					return &ExitError{Code: ExitFailure, Err: err}
				}
				return err
			}
			return reportError(result.Report)
		},
	}

	cmd.Flags().BoolVar(&printEnv, "print-env", false, "print the activation as shell code on stdout")
	addShellFlag(cmd.Flags(), &shell)
	return cmd
}
