// SPDX-License-Identifier: MPL-2.0

package appgraph

import (
	"path"

	"driven-cli/internal/addon"
	"driven-cli/internal/transform"
	"driven-cli/internal/tree"
)

// VendorSeparator joins the files of the vendor bundle so that a library
// missing its trailing semicolon cannot swallow the next one.
const VendorSeparator = "\n;"

// AddonBundle is the path of the concatenated addon modules in the vendor tree.
const AddonBundle = "addons.js"

func (a *App) rootTree() tree.Node {
	trees := []tree.Node{a.entryTree(), a.appAndDependencies(), a.javascript()}
	if other := a.otherAssets(); other != nil {
		trees = append(trees, other)
	}
	if public := a.publicTree(); public != nil {
		trees = append(trees, public)
	}
	if a.tests {
		trees = append(trees, a.testFiles())
	}
	merged := transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(all trees)"})
	return addon.Postprocess(a.addons, addon.KindAll, merged)
}

// projectDir returns the watched source of a project directory, or nil
// when it does not exist.
func (a *App) projectDir(rel string) tree.Node {
	return a.memoize("dir:"+rel, func() tree.Node {
		return a.optionalDir(rel)
	})
}

// addonTree concatenates the transpiled addon modules and their
// re-exports into addons.js.
func (a *App) addonTree() tree.Node {
	return a.memoize("addon", func() tree.Node {
		merged := transform.Merge(addon.TreesFor(a.addons, addon.KindAddon), transform.MergeOptions{
			Overwrite:  true,
			Annotation: "Merge(addons)",
		})
		modules := transform.Funnel(merged, transform.FunnelOptions{
			SrcDir:     "modules",
			AllowEmpty: true,
			Annotation: "Funnel(addon modules)",
		})
		reexports := transform.Funnel(merged, transform.FunnelOptions{
			SrcDir:     "reexports",
			AllowEmpty: true,
			Annotation: "Funnel(addon re-exports)",
		})
		transpiled := transform.Transpile(modules, transform.TranspileOptions{
			ModuleIDs:  true,
			Annotation: "Transpile(addon modules)",
		})
		both := transform.Merge([]tree.Node{transpiled, reexports}, transform.MergeOptions{
			Annotation: "Merge(addon modules, re-exports)",
		})
		return transform.Concat(both, transform.ConcatOptions{
			InputFiles: []string{"**/*.js"},
			OutputFile: AddonBundle,
			AllowNone:  true,
			Annotation: "Concat(addon JS)",
		})
	})
}

// vendorTree is everything placed under vendor/: the addon bundle, the
// addons' vendor trees and the project's vendor directory, later ones
// winning.
func (a *App) vendorTree() tree.Node {
	return a.memoize("vendor", func() tree.Node {
		trees := []tree.Node{a.addonTree()}
		trees = append(trees, addon.TreesFor(a.addons, addon.KindVendor)...)
		if vendor := a.projectDir(a.project.Trees.Vendor); vendor != nil {
			trees = append(trees, vendor)
		}
		merged := transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(vendor)"})
		return transform.Funnel(merged, transform.FunnelOptions{DestDir: "vendor", Annotation: "Funnel(vendor)"})
	})
}

// configTree holds <name>/config/environments/<env>.json.
func (a *App) configTree() tree.Node {
	return a.memoize("config", func() tree.Node {
		src := a.projectDir(a.project.Trees.Config)
		if src == nil {
			src = tree.Empty("Empty(config)")
		}
		loaded := transform.ConfigLoader(src, transform.ConfigLoaderOptions{
			Env:          a.env,
			Tests:        a.tests,
			ModulePrefix: a.name,
		})
		return transform.Funnel(loaded, transform.FunnelOptions{
			DestDir:    path.Join(a.name, "config"),
			Annotation: "Funnel(config)",
		})
	})
}

// bootTree holds the loader and wrapper files with the active
// configuration substituted in.
func (a *App) bootTree() tree.Node {
	return a.memoize("boot", func() tree.Node {
		replaced := transform.TokenReplace(tree.FromFS(bootFS(), "Boot files"), a.configTree(), transform.TokenReplaceOptions{
			ConfigPath: path.Join(a.name, "config", "environments", a.env+".json"),
			Files:      bootFileNames,
			Patterns:   a.replacePatterns(),
		})
		return transform.Funnel(replaced, transform.FunnelOptions{
			Files:      bootFileNames,
			DestDir:    BootDir,
			Annotation: "Funnel(boot files)",
		})
	})
}

// filteredApp is the project's own app directory. It is required.
func (a *App) filteredApp() tree.Node {
	return a.memoize("filtered-app", func() tree.Node {
		return transform.Funnel(tree.WatchedDir(a.path(a.project.Trees.App)), transform.FunnelOptions{
			Annotation: "Funnel(filtered app)",
		})
	})
}

// processedApp merges the addons' app trees under the project's and
// places the result under <name>/.
func (a *App) processedApp() tree.Node {
	return a.memoize("processed-app", func() tree.Node {
		trees := append(addon.TreesFor(a.addons, addon.KindApp), a.filteredApp())
		merged := transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(app)"})
		return transform.Funnel(merged, transform.FunnelOptions{DestDir: a.name, Annotation: "Funnel(processed app)"})
	})
}

// processedTests merges the addons' test-support trees and the project's
// tests under <name>/tests.
func (a *App) processedTests() tree.Node {
	return a.memoize("processed-tests", func() tree.Node {
		trees := addon.TreesFor(a.addons, addon.KindTestSupport)
		if tests := a.projectDir(a.project.Trees.Tests); tests != nil {
			trees = append(trees, tests)
		}
		merged := transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(tests)"})
		return transform.Funnel(merged, transform.FunnelOptions{
			DestDir:    path.Join(a.name, "tests"),
			Annotation: "Funnel(processed tests)",
		})
	})
}

// languageTree runs the preprocess hooks, the delegated transpiler if an
// addon provides one, then the postprocess hooks.
func (a *App) languageTree(kind addon.Kind, t tree.Node) tree.Node {
	t = addon.Preprocess(a.addons, kind, t)
	if tr, ok := addon.FindTranspiler(a.addons); ok {
		t = tr.TranspileTree(t, a.name)
	}
	return addon.Postprocess(a.addons, kind, t)
}

// lintTree places the linters' output for the app and the tests under
// <name>/tests. It is nil when no addon lints.
func (a *App) lintTree() tree.Node {
	return a.memoize("lint", func() tree.Node {
		lints := addon.Lint(a.addons, addon.KindApp, a.filteredApp())
		if tests := a.projectDir(a.project.Trees.Tests); tests != nil {
			lints = append(lints, addon.Lint(a.addons, addon.KindTests, tests)...)
		}
		if len(lints) == 0 {
			return nil
		}
		merged := transform.Merge(lints, transform.MergeOptions{Overwrite: true, Annotation: "Merge(lint)"})
		return transform.Funnel(merged, transform.FunnelOptions{
			DestDir:    path.Join(a.name, "tests"),
			Annotation: "Funnel(lint)",
		})
	})
}

// appAndDependencies is every input of the JavaScript bundles.
func (a *App) appAndDependencies() tree.Node {
	return a.memoize("app-and-dependencies", func() tree.Node {
		var trees []tree.Node
		if a.tests {
			trees = append(trees, a.languageTree(addon.KindTests, a.processedTests()))
			if a.hinting {
				if lint := a.lintTree(); lint != nil {
					trees = append(trees, lint)
				}
			}
		}
		trees = append(trees,
			a.vendorTree(),
			a.languageTree(addon.KindJS, a.processedApp()),
			a.configTree(),
			a.bootTree(),
		)
		return transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(app and dependencies)"})
	})
}

// javascript produces the app bundle and the vendor bundle.
func (a *App) javascript() tree.Node {
	return a.memoize("javascript", func() tree.Node {
		deps := a.appAndDependencies()
		appGlob := a.name + "/**/*.js"

		var appJS tree.Node
		if _, delegated := addon.FindTranspiler(a.addons); delegated {
			appJS = transform.Funnel(deps, transform.FunnelOptions{
				Include:    []string{appGlob},
				Annotation: "Funnel(app JS)",
			})
		} else {
			appJS = transform.Transpile(deps, transform.TranspileOptions{
				Include:    []string{appGlob},
				ModuleIDs:  true,
				Annotation: "Transpile(app JS)",
			})
		}
		appJS = transform.Merge([]tree.Node{appJS, a.bootTree()}, transform.MergeOptions{
			Overwrite:  true,
			Annotation: "Merge(app JS, boot files)",
		})
		appBundle := transform.Concat(appJS, transform.ConcatOptions{
			HeaderFiles: []string{bootPath(appPrefixFile)},
			InputFiles:  []string{appGlob},
			FooterFiles: []string{bootPath(appSuffixFile), bootPath(appBootFile)},
			OutputFile:  a.project.OutputPaths.App,
			Annotation:  "Concat(app)",
		})

		vendorFiles := append(a.registry.VendorJS(), path.Join("vendor", AddonBundle))
		vendorBundle := transform.Concat(deps, transform.ConcatOptions{
			HeaderFiles: []string{bootPath(vendorPrefixFile)},
			InputFiles:  vendorFiles,
			FooterFiles: []string{bootPath(vendorSuffixFile)},
			OutputFile:  a.project.OutputPaths.Vendor,
			Separator:   VendorSeparator,
			Annotation:  "Concat(vendor)",
		})

		return transform.Merge([]tree.Node{vendorBundle, appBundle}, transform.MergeOptions{
			Annotation: "Merge(vendor, app bundles)",
		})
	})
}

// testFiles produces the test-support bundle and, when stylesheets were
// imported as test assets, the test-support stylesheet.
func (a *App) testFiles() tree.Node {
	return a.memoize("test-files", func() tree.Node {
		external := transform.Merge([]tree.Node{a.vendorTree(), a.bootTree()}, transform.MergeOptions{
			Overwrite:  true,
			Annotation: "Merge(vendor, boot files)",
		})
		trees := []tree.Node{transform.Concat(external, transform.ConcatOptions{
			HeaderFiles: []string{bootPath(testSupportPrefixFile)},
			InputFiles:  a.registry.TestJS(),
			FooterFiles: []string{bootPath(testSupportSuffixFile)},
			OutputFile:  a.project.OutputPaths.TestSupport,
			AllowNone:   true,
			Annotation:  "Concat(test support JS)",
		})}
		if styles := a.registry.TestStyles(); len(styles) > 0 {
			trees = append(trees, transform.Concat(a.vendorTree(), transform.ConcatOptions{
				InputFiles: styles,
				OutputFile: a.project.OutputPaths.TestSupportCSS,
				Annotation: "Concat(test support CSS)",
			}))
		}
		return transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(test files)"})
	})
}

// otherAssets copies every imported non-JavaScript file. It is nil when
// there is none.
func (a *App) otherAssets() tree.Node {
	return a.memoize("other-assets", func() tree.Node {
		copies := a.registry.Copies()
		if len(copies) == 0 {
			return nil
		}
		trees := make([]tree.Node, 0, len(copies))
		for _, c := range copies {
			trees = append(trees, transform.Funnel(a.vendorTree(), transform.FunnelOptions{
				SrcDir:     c.Source,
				Files:      []string{c.File},
				DestDir:    c.Dest,
				Annotation: "Funnel(" + path.Join(c.Source, c.File) + ")",
			}))
		}
		return transform.Merge(trees, transform.MergeOptions{Annotation: "Merge(other assets)"})
	})
}

// publicTree merges the addons' public trees under the project's. It is
// nil when nothing is public.
func (a *App) publicTree() tree.Node {
	return a.memoize("public", func() tree.Node {
		trees := addon.TreesFor(a.addons, addon.KindPublic)
		if public := a.projectDir(a.project.Trees.Public); public != nil {
			trees = append(trees, public)
		}
		if len(trees) == 0 {
			return nil
		}
		return transform.Merge(trees, transform.MergeOptions{Overwrite: true, Annotation: "Merge(public)"})
	})
}

// entryTree writes the script the serve loop starts at the output root.
func (a *App) entryTree() tree.Node {
	return a.memoize("entry", func() tree.Node {
		return transform.Concat(a.bootTree(), transform.ConcatOptions{
			InputFiles: []string{bootPath(entryFile)},
			OutputFile: a.project.Entry,
			Annotation: "Concat(entry)",
		})
	})
}
