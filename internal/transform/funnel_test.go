// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFunnel(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"app/index.js":        "index",
		"app/routes/a.js":     "a",
		"app/styles/app.css":  "css",
		"app/templates/x.hbs": "hbs",
		"vendor/lib.js":       "lib",
	}

	tests := []struct {
		name string
		opts FunnelOptions
		want map[string]string
	}{
		{
			name: "whole tree",
			opts: FunnelOptions{},
			want: files,
		},
		{
			name: "src dir re-rooted under dest dir",
			opts: FunnelOptions{SrcDir: "app", DestDir: "my-app"},
			want: map[string]string{
				"my-app/index.js":        "index",
				"my-app/routes/a.js":     "a",
				"my-app/styles/app.css":  "css",
				"my-app/templates/x.hbs": "hbs",
			},
		},
		{
			name: "include and exclude",
			opts: FunnelOptions{SrcDir: "app", Include: []string{"**/*.js", "**/*.css"}, Exclude: []string{"styles/**"}},
			want: map[string]string{"index.js": "index", "routes/a.js": "a"},
		},
		{
			name: "explicit files",
			opts: FunnelOptions{Files: []string{"vendor/lib.js", "./app/index.js"}, DestDir: "out/"},
			want: map[string]string{"out/vendor/lib.js": "lib", "out/app/index.js": "index"},
		},
		{
			name: "no match is empty",
			opts: FunnelOptions{Include: []string{"**/*.ts"}},
			want: map[string]string{},
		},
		{
			name: "missing src dir allowed",
			opts: FunnelOptions{SrcDir: "tests", AllowEmpty: true},
			want: map[string]string{},
		},
		{
			name: "missing listed file allowed",
			opts: FunnelOptions{Files: []string{"vendor/lib.js", "vendor/nope.js"}, AllowEmpty: true},
			want: map[string]string{"vendor/lib.js": "lib"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := evaluate(t, Funnel(fixture(t, files), tt.opts))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Funnel mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFunnel_Strict(t *testing.T) {
	t.Parallel()

	src := fixture(t, map[string]string{"app/index.js": "x"})

	if _, err := evaluateErr(t, Funnel(src, FunnelOptions{SrcDir: "tests"})); !errors.Is(err, ErrSourceDirMissing) {
		t.Errorf("missing src dir: got %v, want ErrSourceDirMissing", err)
	}
	if _, err := evaluateErr(t, Funnel(src, FunnelOptions{Files: []string{"app/gone.js"}})); !errors.Is(err, ErrFileMissing) {
		t.Errorf("missing file: got %v, want ErrFileMissing", err)
	}
}

func TestFunnel_InvalidGlob(t *testing.T) {
	t.Parallel()

	src := fixture(t, map[string]string{"a.js": ""})
	if _, err := evaluateErr(t, Funnel(src, FunnelOptions{Include: []string{"[a-"}})); err == nil {
		t.Fatal("expected error for malformed glob")
	}
}
