// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"driven-cli/internal/issue"
	"driven-cli/internal/transform"
	"driven-cli/internal/tree"
)

type (
	// Clock is the time source used to measure builds.
	Clock interface {
		Now() time.Time
	}

	// Result describes one build. A new Result is produced by every Build.
	Result struct {
		// OutputPath is the directory the output was published to.
		OutputPath string
		Success    bool
		Duration   time.Duration
		// Err is the failure cause when Success is false.
		Err error
		// Location points at the offending source position when the failing
		// transform could identify one.
		Location *tree.Location
	}

	// Orchestrator builds one graph repeatedly, reusing unchanged nodes
	// between builds.
	Orchestrator struct {
		builder    *tree.Builder
		outputPath string
		clock      Clock
		logger     *log.Logger
	}

	// Option configures an Orchestrator.
	Option func(*orchestratorOptions)

	orchestratorOptions struct {
		clock    Clock
		logger   *log.Logger
		tempDir  string
		builders []tree.BuilderOption
	}

	systemClock struct{}
)

func (systemClock) Now() time.Time { return time.Now() }

// WithClock replaces the wall clock used to time builds.
func WithClock(c Clock) Option {
	return func(o *orchestratorOptions) { o.clock = c }
}

// WithLogger sets the logger for build progress.
func WithLogger(logger *log.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = logger }
}

// WithTempDir places intermediate directories below dir.
func WithTempDir(dir string) Option {
	return func(o *orchestratorOptions) { o.tempDir = dir }
}

// WithWorkers bounds how many nodes are evaluated concurrently.
func WithWorkers(n int) Option {
	return func(o *orchestratorOptions) { o.builders = append(o.builders, tree.WithWorkers(n)) }
}

// New prepares an orchestrator publishing the output of root to outputPath.
func New(root tree.Node, outputPath string, opts ...Option) (*Orchestrator, error) {
	o := orchestratorOptions{clock: systemClock{}, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	builderOpts := append([]tree.BuilderOption{tree.WithLogger(o.logger)}, o.builders...)
	if o.tempDir != "" {
		builderOpts = append(builderOpts, tree.WithTempDir(o.tempDir))
	}
	b, err := tree.NewBuilder(root, builderOpts...)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{builder: b, outputPath: abs, clock: o.clock, logger: o.logger}, nil
}

// OutputPath returns the absolute output directory.
func (o *Orchestrator) OutputPath() string { return o.outputPath }

// WatchedDirs lists the source directories whose changes require a rebuild.
func (o *Orchestrator) WatchedDirs() []string {
	return tree.WatchedDirs(o.builder.Root())
}

// Build evaluates the graph and replaces the output directory with a
// dereferenced copy of the result. The previous output is left untouched
// when the build fails.
func (o *Orchestrator) Build(ctx context.Context) Result {
	start := o.clock.Now()
	res := Result{OutputPath: o.outputPath}

	dir, err := o.builder.Build(ctx)
	if err == nil {
		err = o.publish(ctx, dir)
	}
	res.Duration = o.clock.Now().Sub(start)

	if err != nil {
		res.Err = classify(err)
		res.Location = tree.ErrorLocation(err)
		return res
	}

	stats := o.builder.Stats()
	o.logger.Debug("build finished", "nodes", stats.Nodes, "built", stats.Built, "reused", stats.Reused)
	res.Success = true
	return res
}

// Cleanup releases the intermediate directories. The orchestrator cannot
// build afterwards.
func (o *Orchestrator) Cleanup() error {
	return o.builder.Cleanup()
}

func (o *Orchestrator) publish(ctx context.Context, dir string) error {
	parent := filepath.Dir(o.outputPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return outputError(o.outputPath, err)
	}
	staged, err := os.MkdirTemp(parent, "."+filepath.Base(o.outputPath)+"-staging-")
	if err != nil {
		return outputError(o.outputPath, err)
	}
	if err := tree.CopyTree(ctx, dir, staged); err != nil {
		_ = os.RemoveAll(staged)
		return outputError(o.outputPath, err)
	}
	if err := tree.ReplaceDir(staged, o.outputPath); err != nil {
		_ = os.RemoveAll(staged)
		return outputError(o.outputPath, err)
	}
	return nil
}

func outputError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("write build output").
		WithResource(path).
		WithSuggestion("Check that the output directory is writable").
		WithSuggestion("Choose another directory with --output").
		WithIssue(issue.OutputWriteFailedId).
		Wrap(err).
		BuildError()
}

// classify attaches catalog guidance to the build failures users can fix.
func classify(err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}

	ctx := issue.NewErrorContext().WithOperation("build application")
	var conflict *transform.MergeConflictError
	switch {
	case errors.Is(err, tree.ErrSourceMissing):
		ctx = ctx.WithSuggestion("Create the directory or point the matching 'trees' entry at an existing one").
			WithIssue(issue.TreeRootMissingId)
	case errors.As(err, &conflict):
		ctx = ctx.WithResource(conflict.Path).
			WithSuggestion("Remove one of the files or rename it").
			WithIssue(issue.MergeConflictId)
	case tree.ErrorLocation(err) != nil:
		ctx = ctx.WithResource(tree.ErrorLocation(err).String()).
			WithSuggestion("Fix the syntax error; the build resumes on the next save").
			WithIssue(issue.TranspileFailedId)
	default:
		return err
	}
	return ctx.Wrap(err).BuildError()
}
