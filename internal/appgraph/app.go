// SPDX-License-Identifier: MPL-2.0

package appgraph

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"driven-cli/internal/addon"
	"driven-cli/internal/assets"
	"driven-cli/internal/config"
	"driven-cli/internal/issue"
	"driven-cli/internal/tree"
)

type (
	// App is the build graph of one project. It implements addon.Host so
	// that addons can import assets while the App is constructed.
	App struct {
		project  *config.Project
		name     string
		env      string
		tests    bool
		hinting  bool
		extra    []addon.Addon
		addons   []addon.Addon
		registry *assets.Registry
		logger   *log.Logger

		mu   sync.Mutex
		memo map[string]tree.Node
	}

	// Option configures an App.
	Option func(*App)
)

// WithAddons appends addons after the ones declared in the project file.
func WithAddons(addons ...addon.Addon) Option {
	return func(a *App) {
		a.extra = append(a.extra, addons...)
	}
}

// WithLogger sets the logger used for import warnings.
func WithLogger(logger *log.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New constructs the App for project: it instantiates the configured
// addons, drops the disabled ones, imports the project's vendor files and
// notifies every addon that it has been included, in addon order.
func New(project *config.Project, opts ...Option) (*App, error) {
	a := &App{
		project: project,
		name:    string(project.Name),
		env:     string(project.Environment),
		tests:   project.TestsEnabled(),
		logger:  log.New(io.Discard),
		memo:    make(map[string]tree.Node),
	}
	a.hinting = a.tests && project.HintingEnabled()
	for _, opt := range opts {
		opt(a)
	}
	a.registry = assets.NewRegistry(a.env, a.logger)

	all := make([]addon.Addon, 0, len(project.Addons)+len(a.extra)+1)
	for _, entry := range project.Addons {
		all = append(all, a.dirAddon(entry))
	}
	all = append(all, a.extra...)
	if project.Features.Lint {
		all = append(all, addon.NewLintAddon())
	}
	a.addons = addon.Enabled(all)

	for _, vf := range project.VendorFiles {
		if err := a.Import(importAsset(vf), importOptions(vf)); err != nil {
			return nil, importError("vendor_files", err)
		}
	}

	for _, ad := range a.addons {
		inc, ok := ad.(addon.Includer)
		if !ok {
			continue
		}
		if err := inc.Included(a); err != nil {
			return nil, importError(ad.Name(), err)
		}
	}
	return a, nil
}

// Name implements addon.Host.
func (a *App) Name() string { return a.name }

// Env implements addon.Host.
func (a *App) Env() string { return a.env }

// Import implements addon.Host.
func (a *App) Import(asset assets.Asset, opts assets.ImportOptions) error {
	return a.registry.Import(asset, opts)
}

// Addons returns the enabled addons in merge order.
func (a *App) Addons() []addon.Addon {
	return append([]addon.Addon(nil), a.addons...)
}

// TestsEnabled reports whether the test trees are part of the graph.
func (a *App) TestsEnabled() bool { return a.tests }

// HintingEnabled reports whether lint results are part of the graph.
func (a *App) HintingEnabled() bool { return a.hinting }

// Registry exposes the imports recorded so far.
func (a *App) Registry() *assets.Registry { return a.registry }

// Tree returns the root node of the application graph. Repeated calls
// return the same node.
func (a *App) Tree() tree.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.memoize("root", a.rootTree)
}

// memoize returns the node stored under key, building it on first use.
// Callers hold a.mu.
func (a *App) memoize(key string, build func() tree.Node) tree.Node {
	if n, ok := a.memo[key]; ok {
		return n
	}
	n := build()
	a.memo[key] = n
	return n
}

func (a *App) path(rel string) string {
	return filepath.Join(a.project.Root, filepath.FromSlash(rel))
}

// optionalDir returns a watched source for a project directory, or nil
// when the directory does not exist.
func (a *App) optionalDir(rel string) tree.Node {
	if rel == "" || !tree.IsDir(a.path(rel)) {
		return nil
	}
	return tree.WatchedDir(a.path(rel))
}

func (a *App) dirAddon(entry config.AddonEntry) *addon.DirAddon {
	root := entry.Path
	if !filepath.IsAbs(root) {
		root = a.path(root)
	}
	imports := make([]addon.Import, 0, len(entry.Imports))
	for _, imp := range entry.Imports {
		p := imp.Path
		if p == "" {
			p, _ = assets.EnvPaths(imp.Paths).Resolve(a.env)
		}
		if p == "" {
			continue
		}
		imports = append(imports, addon.Import{
			Path:    p,
			Type:    string(imp.Type),
			Prepend: imp.Prepend,
			DestDir: imp.DestDir,
		})
	}
	return addon.NewDirAddon(entry.Name, root,
		addon.WithDisabled(entry.Disabled),
		addon.WithImports(imports...),
	)
}

func importAsset(entry config.ImportEntry) assets.Asset {
	if entry.Path != "" {
		return assets.Path(entry.Path)
	}
	return assets.EnvPaths(entry.Paths)
}

func importOptions(entry config.ImportEntry) assets.ImportOptions {
	return assets.ImportOptions{
		Type:    string(entry.Type),
		Prepend: entry.Prepend,
		DestDir: entry.DestDir,
	}
}

func importError(source string, err error) error {
	return issue.NewErrorContext().
		WithOperation("import assets").
		WithResource(source).
		WithSuggestion("Import single files with an extension, not directories or globs").
		WithSuggestion("Use type \"vendor\" or \"test\" for JavaScript files").
		WithIssue(issue.AssetImportFailedId).
		Wrap(err).
		BuildError()
}
