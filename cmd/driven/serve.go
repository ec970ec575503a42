// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"slices"

	"github.com/spf13/cobra"

	"driven-cli/internal/issue"
	"driven-cli/internal/serve"
	"driven-cli/internal/watch"
)

func newServeCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}
	cmd := &cobra.Command{
		Use:     "serve [-- args...]",
		Aliases: []string{"s"},
		Short:   "Rebuild on every change and restart the served process",
		Long: `Build the project, start its entry point and keep watching the source
trees. Every successful rebuild replaces the running process; a failed
rebuild is reported and the previous process keeps running.

Arguments after "--" are passed to the served process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, app, rootFlags, flags, args)
		},
	}
	addBuildFlags(cmd, flags)
	return cmd
}

func runServe(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *buildFlagValues, args []string) error {
	ctx := cmd.Context()
	logger := app.logger(rootFlags)

	project, orch, err := prepareBuild(ctx, app, rootFlags, flags, logger)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}

	sup := serve.New(orch, app.Spawner(project), project.Entry,
		serve.WithArgs(slices.Concat(project.Serve.Args, args)...),
		serve.WithLogger(logger),
	)

	w, err := watch.New(watch.Config{
		Dirs:        orch.WatchedDirs(),
		Ignore:      project.Serve.Ignore,
		ExcludeDirs: []string{orch.OutputPath()},
		Debounce:    project.Serve.Debounce,
		OnChange:    sup.Notify,
		Logger:      logger,
	})
	if err != nil {
		_ = orch.Cleanup()
		return app.fail(cmd, watcherError(err), rootFlags.verbose)
	}

	logger.Info("Serving", "entry", project.Entry, "watching", len(w.Roots()))
	err = sup.Run(ctx, w)
	if errors.Is(err, serve.ErrShutdown) {
		logger.Info("Shut down")
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: 1, Err: err}
	}
	return app.fail(cmd, watcherError(err), rootFlags.verbose)
}

// watcherError attaches guidance to watcher resource exhaustion.
func watcherError(err error) error {
	if !errors.Is(err, watch.ErrFatal) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("watch project files").
		WithSuggestion("Raise the file watch limit (fs.inotify.max_user_watches on Linux)").
		WithSuggestion("Add large generated directories to serve.ignore").
		WithIssue(issue.WatcherLimitId).
		Wrap(err).
		BuildError()
}
