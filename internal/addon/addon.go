// SPDX-License-Identifier: MPL-2.0

package addon

import (
	"driven-cli/internal/assets"
	"driven-cli/internal/tree"
)

// Kinds of tree an addon can contribute to or process.
const (
	KindAddon       Kind = "addon"
	KindApp         Kind = "app"
	KindVendor      Kind = "vendor"
	KindPublic      Kind = "public"
	KindTestSupport Kind = "test-support"
	KindTests       Kind = "tests"
	KindJS          Kind = "js"
	KindAll         Kind = "all"
)

type (
	// Kind names a role in the application graph.
	Kind string

	// Addon is a named unit extending the build. Every capability below is
	// optional and detected with a type assertion.
	Addon interface {
		Name() string
	}

	// TreeProvider contributes a tree of the given kind. A nil node means
	// no contribution.
	TreeProvider interface {
		TreeFor(kind Kind) tree.Node
	}

	// Preprocessor rewrites a tree before language preprocessing.
	Preprocessor interface {
		PreprocessTree(kind Kind, t tree.Node) tree.Node
	}

	// Postprocessor rewrites a tree after language preprocessing, and the
	// final output tree with KindAll.
	Postprocessor interface {
		PostprocessTree(kind Kind, t tree.Node) tree.Node
	}

	// Linter produces generated test files reporting lint results for a
	// tree. A nil node means nothing to add.
	Linter interface {
		LintTree(kind Kind, t tree.Node) tree.Node
	}

	// Transpiler takes over the language transform of the application
	// tree. When an addon implements it the built-in transpile step is
	// skipped.
	Transpiler interface {
		TranspileTree(t tree.Node, appName string) tree.Node
	}

	// Includer is notified once, in addon order, when the application is
	// constructed. It may import assets through host.
	Includer interface {
		Included(host Host) error
	}

	// Enabler can exclude an addon from the build entirely.
	Enabler interface {
		IsEnabled() bool
	}

	// Host is the view of the application handed to Includer addons.
	Host interface {
		Name() string
		Env() string
		Import(asset assets.Asset, opts assets.ImportOptions) error
	}
)

// Enabled returns a new slice holding the addons of all that are enabled,
// in their original order. all is not modified.
func Enabled(all []Addon) []Addon {
	out := make([]Addon, 0, len(all))
	for _, a := range all {
		if e, ok := a.(Enabler); ok && !e.IsEnabled() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// TreesFor collects the non-nil contributions of kind, in addon order.
func TreesFor(addons []Addon, kind Kind) []tree.Node {
	var nodes []tree.Node
	for _, a := range addons {
		p, ok := a.(TreeProvider)
		if !ok {
			continue
		}
		if n := p.TreeFor(kind); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Preprocess threads t through every Preprocessor in addon order.
func Preprocess(addons []Addon, kind Kind, t tree.Node) tree.Node {
	for _, a := range addons {
		if p, ok := a.(Preprocessor); ok {
			if out := p.PreprocessTree(kind, t); out != nil {
				t = out
			}
		}
	}
	return t
}

// Postprocess threads t through every Postprocessor in addon order.
func Postprocess(addons []Addon, kind Kind, t tree.Node) tree.Node {
	for _, a := range addons {
		if p, ok := a.(Postprocessor); ok {
			if out := p.PostprocessTree(kind, t); out != nil {
				t = out
			}
		}
	}
	return t
}

// Lint collects the non-nil lint trees for t, in addon order.
func Lint(addons []Addon, kind Kind, t tree.Node) []tree.Node {
	var nodes []tree.Node
	for _, a := range addons {
		if l, ok := a.(Linter); ok {
			if n := l.LintTree(kind, t); n != nil {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes
}

// FindTranspiler returns the first addon that takes over transpilation.
func FindTranspiler(addons []Addon) (Transpiler, bool) {
	for _, a := range addons {
		if t, ok := a.(Transpiler); ok {
			return t, true
		}
	}
	return nil, false
}
