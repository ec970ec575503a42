// SPDX-License-Identifier: MPL-2.0

package addon

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"driven-cli/internal/tree"
)

type (
	plainAddon struct{ name string }

	toggledAddon struct {
		plainAddon
		enabled bool
	}

	hookAddon struct {
		plainAddon
		log *[]string
	}

	wrapNode struct {
		label string
		in    tree.Node
	}
)

func (p plainAddon) Name() string { return p.name }

func (t toggledAddon) IsEnabled() bool { return t.enabled }

func (h hookAddon) PreprocessTree(kind Kind, t tree.Node) tree.Node {
	*h.log = append(*h.log, "pre:"+h.name+":"+string(kind))
	return &wrapNode{label: "pre-" + h.name, in: t}
}

func (h hookAddon) PostprocessTree(kind Kind, t tree.Node) tree.Node {
	*h.log = append(*h.log, "post:"+h.name+":"+string(kind))
	return &wrapNode{label: "post-" + h.name, in: t}
}

func (w *wrapNode) Annotation() string { return w.label + "(" + w.in.Annotation() + ")" }

func TestEnabled_IsPureFilter(t *testing.T) {
	t.Parallel()

	all := []Addon{
		plainAddon{"a"},
		toggledAddon{plainAddon{"b"}, false},
		toggledAddon{plainAddon{"c"}, true},
		plainAddon{"d"},
	}
	before := append([]Addon(nil), all...)

	got := Enabled(all)

	names := make([]string, len(got))
	for i, a := range got {
		names[i] = a.Name()
	}
	if diff := cmp.Diff([]string{"a", "c", "d"}, names); diff != "" {
		t.Errorf("Enabled mismatch (-want +got):\n%s", diff)
	}
	for i := range all {
		if all[i].Name() != before[i].Name() {
			t.Fatalf("input slice was modified at %d", i)
		}
	}
}

func TestHooksRunInAddonOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	addons := []Addon{
		hookAddon{plainAddon{"first"}, &calls},
		plainAddon{"no-hooks"},
		hookAddon{plainAddon{"second"}, &calls},
	}
	src := tree.UnwatchedDir("app")

	pre := Preprocess(addons, KindApp, src)
	post := Postprocess(addons, KindApp, pre)

	wantCalls := []string{"pre:first:app", "pre:second:app", "post:first:app", "post:second:app"}
	if diff := cmp.Diff(wantCalls, calls); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
	want := "post-second(post-first(pre-second(pre-first(UnwatchedDir(app)))))"
	if got := post.Annotation(); got != want {
		t.Errorf("annotation = %q, want %q", got, want)
	}
}

func TestFindTranspiler_None(t *testing.T) {
	t.Parallel()

	if _, ok := FindTranspiler([]Addon{plainAddon{"x"}}); ok {
		t.Error("found a transpiler among plain addons")
	}
}
