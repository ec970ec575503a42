// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"driven-cli/internal/appgraph"
	"driven-cli/internal/build"
	"driven-cli/internal/config"
)

// buildFlagValues holds the flags of the build and serve commands.
type buildFlagValues struct {
	output      string
	environment string
}

func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}
	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"b"},
		Short:   "Build the project once",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, app, rootFlags, flags)
		},
	}
	addBuildFlags(cmd, flags)
	return cmd
}

func addBuildFlags(cmd *cobra.Command, flags *buildFlagValues) {
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", `output directory (default is the project's output_dir, "dist")`)
	cmd.Flags().StringVarP(&flags.environment, "environment", "e", "", "build environment: development, test or production (default is $DRIVEN_ENV or development)")
}

func runBuild(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *buildFlagValues) error {
	ctx := cmd.Context()
	logger := app.logger(rootFlags)

	project, orch, err := prepareBuild(ctx, app, rootFlags, flags, logger)
	if err != nil {
		return app.fail(cmd, err, rootFlags.verbose)
	}
	defer func() {
		if err := orch.Cleanup(); err != nil {
			logger.Warn("remove build directories", "err", err)
		}
	}()

	res := orch.Build(ctx)
	if !res.Success {
		return app.fail(cmd, res.Err, rootFlags.verbose)
	}

	logger.Debug("build finished", "environment", project.Environment, "duration", res.Duration)
	fmt.Fprintf(app.stdout, "%s Built project successfully. Stored in %s.\n",
		SuccessStyle.Render("✓"), CmdStyle.Render(displayPath(project.Root, res.OutputPath)))
	return nil
}

// prepareBuild loads the project and assembles its graph and orchestrator.
// The caller owns the orchestrator and must call Cleanup.
func prepareBuild(ctx context.Context, app *App, rootFlags *rootFlagValues, flags *buildFlagValues, logger *log.Logger) (*config.Project, *build.Orchestrator, error) {
	project, err := app.loadProject(ctx, rootFlags, flags.environment)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("project loaded", "name", project.Name, "environment", project.Environment, "file", project.ConfigFile)

	graph, err := appgraph.New(project, appgraph.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	output := flags.output
	if output == "" {
		output = project.OutputDir
	}
	if !filepath.IsAbs(output) {
		output = filepath.Join(project.Root, output)
	}

	orch, err := build.New(graph.Tree(), output, build.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return project, orch, nil
}

// displayPath shows path relative to root when it lies below it.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel + string(filepath.Separator)
}
