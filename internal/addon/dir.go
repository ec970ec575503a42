// SPDX-License-Identifier: MPL-2.0

package addon

import (
	"fmt"
	"path"
	"path/filepath"

	"driven-cli/internal/assets"
	"driven-cli/internal/transform"
	"driven-cli/internal/tree"
)

type (
	// Import is an asset a DirAddon imports into the host application when
	// it is included. Path is relative to the project root.
	Import struct {
		Path    string
		Type    string
		Prepend bool
		DestDir string
	}

	// DirAddon contributes trees from conventional subdirectories of Root:
	// addon/, reexports/, app/, vendor/, public/ and test-support/.
	DirAddon struct {
		name     string
		root     string
		disabled bool
		imports  []Import
	}

	// DirOption configures a DirAddon.
	DirOption func(*DirAddon)
)

// WithDisabled excludes the addon from the build when disabled is true.
func WithDisabled(disabled bool) DirOption {
	return func(d *DirAddon) { d.disabled = disabled }
}

// WithImports registers assets imported when the addon is included.
func WithImports(imports ...Import) DirOption {
	return func(d *DirAddon) { d.imports = append(d.imports, imports...) }
}

// NewDirAddon returns an addon named name rooted at root.
func NewDirAddon(name, root string, opts ...DirOption) *DirAddon {
	d := &DirAddon{name: name, root: root}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DirAddon) Name() string { return d.name }

// Root returns the addon directory.
func (d *DirAddon) Root() string { return d.root }

func (d *DirAddon) IsEnabled() bool { return !d.disabled }

// TreeFor returns the subdirectory matching kind, or nil when it does not
// exist. Addon modules are placed under modules/<name> and re-exports under
// reexports/ so that the application graph can bundle them.
func (d *DirAddon) TreeFor(kind Kind) tree.Node {
	switch kind {
	case KindAddon:
		var parts []tree.Node
		if dir := d.subdir("addon"); dir != "" {
			parts = append(parts, transform.Funnel(tree.WatchedDir(dir), transform.FunnelOptions{
				DestDir:    path.Join("modules", d.name),
				Annotation: fmt.Sprintf("Funnel(%s modules)", d.name),
			}))
		}
		if dir := d.subdir("reexports"); dir != "" {
			parts = append(parts, transform.Funnel(tree.WatchedDir(dir), transform.FunnelOptions{
				DestDir:    "reexports",
				Annotation: fmt.Sprintf("Funnel(%s reexports)", d.name),
			}))
		}
		switch len(parts) {
		case 0:
			return nil
		case 1:
			return parts[0]
		default:
			return transform.Merge(parts, transform.MergeOptions{Annotation: "Merge(" + d.name + " addon)"})
		}
	case KindApp, KindVendor, KindPublic, KindTestSupport:
		if dir := d.subdir(string(kind)); dir != "" {
			return tree.WatchedDir(dir)
		}
	}
	return nil
}

// Included imports the addon's declared assets into host.
func (d *DirAddon) Included(host Host) error {
	for _, imp := range d.imports {
		err := host.Import(assets.Path(imp.Path), assets.ImportOptions{
			Type:    imp.Type,
			Prepend: imp.Prepend,
			DestDir: imp.DestDir,
		})
		if err != nil {
			return fmt.Errorf("addon %s: %w", d.name, err)
		}
	}
	return nil
}

func (d *DirAddon) subdir(name string) string {
	dir := filepath.Join(d.root, name)
	if !tree.IsDir(dir) {
		return ""
	}
	return dir
}
