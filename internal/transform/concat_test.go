// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"errors"
	"testing"
)

// TestConcat_Ordering checks headers, then body matches, then footers,
// joined by the separator, whatever the directory enumeration order.
func TestConcat_Ordering(t *testing.T) {
	t.Parallel()

	src := fixture(t, map[string]string{
		"h.js":      "H",
		"lib/b2.js": "B2",
		"lib/b1.js": "B1",
		"f.js":      "F",
	})

	got := evaluate(t, Concat(src, ConcatOptions{
		HeaderFiles: []string{"h.js"},
		InputFiles:  []string{"lib/b1.js", "lib/b2.js"},
		FooterFiles: []string{"f.js"},
		OutputFile:  "out.js",
	}))
	if want := "H\nB1\nB2\nF"; got["out.js"] != want {
		t.Errorf("out.js = %q, want %q", got["out.js"], want)
	}
	if len(got) != 1 {
		t.Errorf("expected a single output file, got %v", got)
	}
}

func TestConcat(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"prefix.js":     "P",
		"suffix.js":     "S",
		"app/z.js":      "Z",
		"app/a.js":      "A",
		"app/m/n.js":    "N",
		"app/style.css": "C",
		"legacy/x.js":   "X",
	}

	tests := []struct {
		name string
		opts ConcatOptions
		want string
	}{
		{
			name: "glob matches sorted",
			opts: ConcatOptions{InputFiles: []string{"app/**/*.js"}},
			want: "A\nN\nZ",
		},
		{
			name: "patterns keep listed order and dedupe",
			opts: ConcatOptions{InputFiles: []string{"legacy/x.js", "app/z.js", "app/*.js"}},
			want: "X\nZ\nA",
		},
		{
			name: "headers and footers excluded from body",
			opts: ConcatOptions{
				HeaderFiles: []string{"prefix.js"},
				InputFiles:  []string{"*.js"},
				FooterFiles: []string{"suffix.js"},
				AllowNone:   true,
			},
			want: "P\nS",
		},
		{
			name: "custom separator",
			opts: ConcatOptions{InputFiles: []string{"app/a.js", "app/z.js"}, Separator: "\n;"},
			want: "A\n;Z",
		},
		{
			name: "allow none",
			opts: ConcatOptions{InputFiles: []string{"nothing/**/*.js"}, AllowNone: true},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tt.opts.OutputFile = "assets/out.js"
			got := evaluate(t, Concat(fixture(t, files), tt.opts))
			out, ok := got["assets/out.js"]
			if !ok {
				t.Fatalf("assets/out.js not written; got %v", got)
			}
			if out != tt.want {
				t.Errorf("content = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestConcat_Errors(t *testing.T) {
	t.Parallel()

	files := map[string]string{"a.js": "A"}

	tests := []struct {
		name string
		opts ConcatOptions
		want error
	}{
		{"no body match", ConcatOptions{InputFiles: []string{"lib/**/*.js"}}, ErrConcatNoInput},
		{"missing literal", ConcatOptions{InputFiles: []string{"missing.js"}, AllowNone: true}, ErrConcatFileMissing},
		{"missing header", ConcatOptions{HeaderFiles: []string{"h.js"}, InputFiles: []string{"a.js"}}, ErrConcatFileMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tt.opts.OutputFile = "out.js"
			if _, err := evaluateErr(t, Concat(fixture(t, files), tt.opts)); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
