// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNewCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new project from a blueprint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(app.stdout, WarningStyle.Render("Not implemented (yet)."))
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return &ExitError{Code: 1}
		},
	}
}
