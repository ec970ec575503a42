// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"driven-cli/internal/config"
	"driven-cli/internal/issue"
	"driven-cli/internal/serve"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration and process spawning
	// through it.
	App struct {
		Config  config.Provider
		Spawner func(*config.Project) serve.Spawner
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  config.Provider
		Spawner func(*config.Project) serve.Spawner
		Stdout  io.Writer
		Stderr  io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Spawner == nil {
		stdout, stderr := deps.Stdout, deps.Stderr
		deps.Spawner = func(p *config.Project) serve.Spawner {
			return &serve.ExecSpawner{
				Interpreter: p.Serve.Interpreter,
				Dir:         p.Root,
				Stdout:      stdout,
				Stderr:      stderr,
			}
		}
	}
	return &App{
		Config:  deps.Config,
		Spawner: deps.Spawner,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// loadProject resolves the project for the current invocation. An empty
// environment keeps the value from DRIVEN_ENV or the project file.
func (a *App) loadProject(ctx context.Context, flags *rootFlagValues, environment string) (*config.Project, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ProjectDir:     flags.cwd,
		ConfigFilePath: flags.configPath,
		Environment:    environment,
	})
}

// logger returns the structured logger shared by one command run.
func (a *App) logger(flags *rootFlagValues) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	if flags.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// fail prints err for the user and converts it into a silent exit code so
// the message is not repeated by the command framework.
func (a *App) fail(cmd *cobra.Command, err error, verbose bool) error {
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if verbose && errors.As(err, &ae) && ae.Issue != 0 {
		if entry := issue.Get(ae.Issue); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	if verboseMode {
		return err.Error() + "\n\nError chain:" + issue.Chain(err)
	}
	return err.Error()
}
