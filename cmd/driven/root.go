// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for driven.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"driven-cli/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	verbose    bool
	configPath string
	cwd        string
}

// NewRootCommand assembles the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	root := &cobra.Command{
		Use:   "driven",
		Short: "Build and serve JavaScript applications from a composable build graph",
		Long: TitleStyle.Render("driven") + SubtitleStyle.Render(" - build and serve JavaScript applications") + `

driven assembles the app, tests, vendor and public trees of a project,
together with the contributions of its addons, into a single output
directory. "driven serve" keeps rebuilding on every change and restarts
the served process after each successful build.

` + SubtitleStyle.Render("Examples:") + `
  driven build                      Build into ./dist
  driven b --environment production Production build
  driven serve -- --port 4200       Rebuild on change and serve`,
		Args: rejectUnknownCommand,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "project file (default is driven.cue, driven.toml or driven.yaml in the project directory)")
	root.PersistentFlags().StringVar(&flags.cwd, "cwd", "", "project directory (default is the current directory)")

	root.AddCommand(
		newBuildCommand(app, flags),
		newServeCommand(app, flags),
		newNewCommand(app),
	)
	return root
}

// rejectUnknownCommand turns stray positional arguments on the root command
// into an error naming the command that was not found.
func rejectUnknownCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("run command").
		WithResource(args[0]).
		WithSuggestion("Run '" + cmd.Root().Name() + " --help' to list the available commands").
		WithIssue(issue.UnknownCommandId).
		Wrap(fmt.Errorf("unknown command %q for %q", args[0], cmd.Root().Name())).
		BuildError()
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's status. It is called by
// main.main().
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
