// SPDX-License-Identifier: MPL-2.0

package appgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driven-cli/internal/addon"
	"driven-cli/internal/assets"
	"driven-cli/internal/config"
	"driven-cli/internal/issue"
	"driven-cli/internal/testutil"
	"driven-cli/internal/transform"
	"driven-cli/internal/tree"
)

// appTreeAddon contributes the "addon" directory below its root to the
// application tree.
type appTreeAddon struct {
	name string
	root string
}

func (a *appTreeAddon) Name() string { return a.name }

func (a *appTreeAddon) TreeFor(kind addon.Kind) tree.Node {
	if kind != addon.KindApp {
		return nil
	}
	return tree.WatchedDir(filepath.Join(a.root, "addon"))
}

// hookAddon records the hooks it was asked to run.
type hookAddon struct {
	name     string
	enabled  bool
	included *[]string
	imports  []string
	post     *[]addon.Kind
}

func (h *hookAddon) Name() string { return h.name }

func (h *hookAddon) IsEnabled() bool { return h.enabled }

func (h *hookAddon) Included(host addon.Host) error {
	*h.included = append(*h.included, h.name+"@"+host.Name()+"/"+host.Env())
	for _, p := range h.imports {
		if err := host.Import(assets.Path(p), assets.ImportOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (h *hookAddon) PostprocessTree(kind addon.Kind, t tree.Node) tree.Node {
	if h.post != nil {
		*h.post = append(*h.post, kind)
	}
	return t
}

// passthroughTranspiler takes over the language step without changing files.
type passthroughTranspiler struct{}

func (passthroughTranspiler) Name() string { return "passthrough" }

func (passthroughTranspiler) TranspileTree(t tree.Node, appName string) tree.Node {
	return transform.Funnel(t, transform.FunnelOptions{Annotation: "Passthrough(" + appName + ")"})
}

func newProject(t *testing.T, files map[string]string) *config.Project {
	t.Helper()
	root := t.TempDir()
	testutil.WriteFiles(t, root, files)
	p := config.DefaultProject()
	p.Root = root
	p.Name = "my-app"
	return p
}

func build(t *testing.T, app *App) map[string]string {
	t.Helper()
	b, err := tree.NewBuilder(app.Tree(), tree.WithTempDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Cleanup() })
	out, err := b.Build(context.Background())
	require.NoError(t, err)
	return testutil.ReadFiles(t, out)
}

func TestApp_EndToEnd(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"app/index.js": "import foo from './foo';\nexport default function start() { return foo; }\n",
	})
	addonRoot := t.TempDir()
	testutil.WriteFiles(t, addonRoot, map[string]string{
		"addon/foo.js": "export default 'foo-from-addon';\n",
	})

	app, err := New(p, WithAddons(&appTreeAddon{name: "foo-addon", root: addonRoot}))
	require.NoError(t, err)
	out := build(t, app)

	bundle, ok := out["driven-server.js"]
	require.True(t, ok, "app bundle missing, got %v", keys(out))

	prefix := strings.Index(bundle, "/* my-app (development) */")
	foo := strings.Index(bundle, `define("my-app/foo"`)
	index := strings.Index(bundle, `define("my-app/index"`)
	suffix := strings.Index(bundle, `define("my-app/config/environment"`)
	boot := strings.Index(bundle, `globalThis.driven.boot("my-app"`)

	assert.Equal(t, 0, prefix, "bundle must start with the app prefix")
	assert.Greater(t, foo, prefix)
	assert.Greater(t, index, foo)
	assert.Greater(t, suffix, index)
	assert.Greater(t, boot, suffix)
	assert.Contains(t, bundle, "foo-from-addon")
	assert.Contains(t, bundle, `"modulePrefix":"my-app"`)
	assert.NotContains(t, bundle, "export default", "modules must be transpiled")

	assert.Contains(t, out["index.js"], `require("./assets/vendor.js");`)
	assert.Contains(t, out["index.js"], `require("./driven-server.js");`)
	assert.True(t, strings.HasPrefix(out["assets/vendor.js"], "/* driven module loader */"))
	assert.Contains(t, out["assets/vendor.js"], VendorSeparator)
	assert.Contains(t, out, "vendor/addons.js")
	assert.Contains(t, out, "vendor/driven-cli/app-boot.js")
	assert.Contains(t, out, "my-app/config/environments/development.json")
	assert.Contains(t, out, "my-app/config/environments/test.json")
	assert.Contains(t, out, "assets/test-support.js")
}

func TestApp_AddonModulesBundled(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"app/index.js":                  "export default 1;\n",
		"addons/charts/addon/chart.js":  "export default 'chart';\n",
		"addons/charts/reexports/c.js":  "define('charts', ['charts/chart'], function (m) { return m; });\n",
		"addons/charts/vendor/lib/x.js": "window.x = 1;\n",
	})
	p.Addons = []config.AddonEntry{{
		Name:    "charts",
		Path:    "addons/charts",
		Imports: []config.ImportEntry{{Path: "vendor/lib/x.js"}},
	}}

	app, err := New(p)
	require.NoError(t, err)
	out := build(t, app)

	addons := out["vendor/addons.js"]
	assert.Contains(t, addons, `define("charts/chart"`)
	assert.Contains(t, addons, "define('charts', ['charts/chart']")

	vendor := out["assets/vendor.js"]
	x := strings.Index(vendor, "window.x = 1;")
	chart := strings.Index(vendor, `define("charts/chart"`)
	require.NotEqual(t, -1, x)
	assert.Greater(t, chart, x, "legacy vendor files come before addons.js")
}

func TestApp_VendorFilesImportedAtConstruction(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"app/index.js":            "export default 1;\n",
		"vendor/lib/a.js":         "var a = 'a';",
		"vendor/lib/b.js":         "var b = 'b';",
		"vendor/fonts/icons.woff": "woff",
		"vendor/lib/qunit.css":    "css",
	})
	p.VendorFiles = []config.ImportEntry{
		{Path: "vendor/lib/a.js"},
		{Path: "vendor/lib/b.js", Prepend: true},
		{Paths: map[string]string{"production": "vendor/lib/prod.js"}},
		{Path: "vendor/fonts/icons.woff"},
		{Path: "vendor/lib/qunit.css", Type: config.ImportTypeTest},
	}

	app, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/lib/b.js", "vendor/lib/a.js"}, app.Registry().VendorJS())

	out := build(t, app)
	vendor := out["assets/vendor.js"]
	assert.Less(t, strings.Index(vendor, "var b = 'b';"), strings.Index(vendor, "var a = 'a';"))
	assert.Equal(t, "woff", out["fonts/icons.woff"])
	assert.Equal(t, "css", out["assets/test-support.css"])
}

func TestApp_SymlinkedVendorDirectory(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	p := newProject(t, map[string]string{"app/index.js": "export default 1;\n"})
	linked := t.TempDir()
	testutil.WriteFiles(t, linked, map[string]string{"lib.js": "var linked = true;"})
	testutil.MustMkdirAll(t, filepath.Join(p.Root, "vendor"), 0o755)
	require.NoError(t, os.Symlink(linked, filepath.Join(p.Root, "vendor", "linked-lib")))
	p.VendorFiles = []config.ImportEntry{{Path: "vendor/linked-lib/lib.js"}}

	app, err := New(p)
	require.NoError(t, err)
	out := build(t, app)
	assert.Contains(t, out["assets/vendor.js"], "var linked = true;")
}

func TestApp_ImportErrorsAbortConstruction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   config.ImportEntry
		wantErr error
	}{
		{"glob", config.ImportEntry{Path: "vendor/*.js"}, assets.ErrGlobPath},
		{"directory", config.ImportEntry{Path: "vendor/lib"}, assets.ErrMissingExtension},
		{"bad type", config.ImportEntry{Path: "vendor/lib/a.js", Type: "app"}, assets.ErrInvalidImportType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newProject(t, map[string]string{"app/index.js": ""})
			p.VendorFiles = []config.ImportEntry{tt.entry}

			_, err := New(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			var ae *issue.ActionableError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, issue.AssetImportFailedId, ae.Issue)
		})
	}
}

func TestApp_AddonLifecycle(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"app/index.js":    "export default 1;\n",
		"vendor/lib/z.js": "var z;",
	})
	var included []string
	var post []addon.Kind
	first := &hookAddon{name: "first", enabled: true, included: &included, imports: []string{"vendor/lib/z.js"}, post: &post}
	disabled := &hookAddon{name: "disabled", enabled: false, included: &included}
	second := &hookAddon{name: "second", enabled: true, included: &included}

	all := []addon.Addon{first, disabled, second}
	app, err := New(p, WithAddons(all...))
	require.NoError(t, err)

	assert.Equal(t, []string{"first@my-app/development", "second@my-app/development"}, included)
	require.Len(t, app.Addons(), 2)
	assert.Equal(t, "disabled", all[1].Name(), "the caller's slice is left untouched")
	assert.Equal(t, []string{"vendor/lib/z.js"}, app.Registry().VendorJS())

	build(t, app)
	assert.Contains(t, post, addon.KindJS)
	assert.Contains(t, post, addon.KindTests)
	assert.Equal(t, addon.KindAll, post[len(post)-1])
}

func TestApp_Memoized(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{"app/index.js": ""})
	app, err := New(p)
	require.NoError(t, err)

	root := app.Tree()
	assert.Same(t, root, app.Tree())

	app.mu.Lock()
	assert.Same(t, app.vendorTree(), app.vendorTree())
	assert.Same(t, app.bootTree(), app.bootTree())
	app.mu.Unlock()

	other, err := New(p)
	require.NoError(t, err)
	assert.NotSame(t, root, other.Tree(), "memoized trees are never shared between apps")
}

func TestApp_EnvironmentFeatures(t *testing.T) {
	t.Parallel()

	t.Run("production drops tests", func(t *testing.T) {
		t.Parallel()
		p := newProject(t, map[string]string{
			"app/index.js":            "export default 1;\n",
			"tests/unit/a-test.js":    "export default 2;\n",
			"config/environment.json": `{"base":{"api":"/api"},"environments":{"production":{"api":"https://x"}}}`,
		})
		p.Environment = config.EnvProduction
		p.Features.Lint = true

		app, err := New(p)
		require.NoError(t, err)
		assert.False(t, app.TestsEnabled())
		assert.False(t, app.HintingEnabled())

		out := build(t, app)
		assert.NotContains(t, out, "assets/test-support.js")
		assert.NotContains(t, out, "my-app/tests/unit/a-test.js")
		assert.Contains(t, out["my-app/config/environments/production.json"], `"api": "https://x"`)
		assert.Contains(t, out["driven-server.js"], "/* my-app (production) */")
	})

	t.Run("development lints app and tests", func(t *testing.T) {
		t.Parallel()
		p := newProject(t, map[string]string{
			"app/index.js":         "export default 1;\n",
			"tests/unit/a-test.js": "export default 2;\n",
		})
		p.Features.Lint = true

		app, err := New(p)
		require.NoError(t, err)
		require.True(t, app.HintingEnabled())

		out := build(t, app)
		assert.Contains(t, out, "my-app/tests/unit/a-test.js")
		assert.Contains(t, out, "my-app/tests/index.lint-test.js")
		assert.Contains(t, out, "my-app/tests/unit/a-test.lint-test.js")
		assert.Contains(t, out["driven-server.js"], `define("my-app/tests/index.lint-test"`)
	})
}

func TestApp_DelegatedTranspiler(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{"app/index.js": "export default 'raw';\n"})
	app, err := New(p, WithAddons(passthroughTranspiler{}))
	require.NoError(t, err)

	out := build(t, app)
	assert.Contains(t, out["driven-server.js"], "export default 'raw';")
	assert.NotContains(t, out["driven-server.js"], `define("my-app/index"`)
}

func TestApp_MissingAppDirFailsBuild(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{})
	app, err := New(p)
	require.NoError(t, err)

	b, err := tree.NewBuilder(app.Tree(), tree.WithTempDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Cleanup() })

	_, err = b.Build(context.Background())
	var be *tree.BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Annotation, filepath.Join(p.Root, "app"))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
