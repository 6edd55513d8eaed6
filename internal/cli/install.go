// internal/cli/install.go
package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [manifest]",
		Short: "Install a manifest into the active environment",
		Long: `Install every requirement of a manifest into the active environment.

Requirements are installed in order; a failing requirement is reported and
the rest are still attempted. Exits 1 if any requirement failed.

Examples:
  envboot install
  envboot install dev-requirements.txt
  envboot install pyproject.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			report, err := a.orchestrator().Install(cmd.Context(), path)
			printReport(cmd.OutOrStdout(), report)
			if err != nil {
				if isCancelled(err) {
					return &ExitError{Code: ExitFailure, Err: err}
				}
				return err
			}
			return reportError(report)
		},
	}
}
