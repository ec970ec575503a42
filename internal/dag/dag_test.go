// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type edge struct{ from, to string }

func TestLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []string
		edges []edge
		want  [][]string
	}{
		{
			name: "empty graph",
		},
		{
			name:  "single source",
			nodes: []string{"src:app"},
			want:  [][]string{{"src:app"}},
		},
		{
			name:  "funnel chain",
			edges: []edge{{"src:app", "funnel"}, {"funnel", "transpile"}},
			want:  [][]string{{"src:app"}, {"funnel"}, {"transpile"}},
		},
		{
			name: "sources feeding a merge",
			edges: []edge{
				{"src:app", "merge"},
				{"src:vendor", "merge"},
				{"merge", "concat"},
			},
			want: [][]string{{"src:app", "src:vendor"}, {"merge"}, {"concat"}},
		},
		{
			name: "diamond",
			edges: []edge{
				{"config", "boot"},
				{"config", "app"},
				{"boot", "root"},
				{"app", "root"},
			},
			want: [][]string{{"config"}, {"boot", "app"}, {"root"}},
		},
		{
			name:  "disconnected nodes share the first level",
			nodes: []string{"public", "entry"},
			edges: []edge{{"src:app", "bundle"}},
			want:  [][]string{{"public", "entry", "src:app"}, {"bundle"}},
		},
		{
			name:  "duplicate edges",
			edges: []edge{{"src:app", "merge"}, {"src:app", "merge"}},
			want:  [][]string{{"src:app"}, {"merge"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e.from, e.to)
			}
			got, err := g.Levels()
			if err != nil {
				t.Fatalf("Levels() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Levels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLevels_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		edges     []edge
		wantCycle []string
	}{
		{"self loop", []edge{{"merge", "merge"}}, []string{"merge"}},
		{"two nodes", []edge{{"a", "b"}, {"b", "a"}}, []string{"a", "b"}},
		{"three nodes behind a source", []edge{{"src", "a"}, {"a", "b"}, {"b", "c"}, {"c", "a"}}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e.from, e.to)
			}
			_, err := g.Levels()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("Levels() = %v, want *CycleError", err)
			}
			if diff := cmp.Diff(tt.wantCycle, cycleErr.Cycle); diff != "" {
				t.Errorf("cycle mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()

	err := &CycleError{Cycle: []string{"A", "B", "C"}}
	if want := "tree graph cycle detected: A -> B -> C"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLen(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("a", "b")
	g.AddNode("a")
	g.AddNode("c")
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}
