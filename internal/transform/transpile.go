// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"

	"driven-cli/internal/tree"
)

// DefaultTranspileInclude is used when TranspileOptions.Include is empty.
var DefaultTranspileInclude = []string{"**/*.js"}

type (
	// TranspileOptions configures Transpile.
	TranspileOptions struct {
		// Include selects the files to transpile. Other files are dropped.
		Include []string
		// ModuleIDs converts each file to CommonJS and wraps it in a named
		// define() call so that the browser loader can require it by id.
		ModuleIDs bool
		// ModuleRoot is stripped from the front of a file's path to form its
		// module id. Files outside it keep their full path.
		ModuleRoot string
		// Target is the language level of the output. Defaults to ES2015.
		Target api.Target
		// Annotation overrides the default node label.
		Annotation string
	}

	// TranspileNode is the Transform returned by Transpile.
	TranspileNode struct {
		input tree.Node
		opts  TranspileOptions
	}
)

// Transpile returns a node holding the source-to-source transformed copy
// of every matched file of input, at the same relative path.
func Transpile(input tree.Node, opts TranspileOptions) *TranspileNode {
	if len(opts.Include) == 0 {
		opts.Include = DefaultTranspileInclude
	}
	if opts.Target == api.DefaultTarget {
		opts.Target = api.ES2015
	}
	opts.ModuleRoot = cleanRel(opts.ModuleRoot)
	return &TranspileNode{input: input, opts: opts}
}

func (t *TranspileNode) Annotation() string {
	return annotate(t.opts.Annotation, "Transpile("+strings.Join(t.opts.Include, ", ")+")")
}

func (t *TranspileNode) Inputs() []tree.Node { return []tree.Node{t.input} }

func (t *TranspileNode) Build(ctx context.Context, inputs []string, output string) error {
	if err := validatePatterns(t.opts.Include); err != nil {
		return err
	}
	all, err := tree.ListFiles(inputs[0])
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, rel := range all {
		ok, err := matchAny(t.opts.Include, rel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return t.transpileFile(filepath.Join(inputs[0], filepath.FromSlash(rel)), rel, output)
		})
	}
	return g.Wait()
}

func (t *TranspileNode) transpileFile(src, rel, output string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	opts := api.TransformOptions{
		Loader:     api.LoaderJS,
		Target:     t.opts.Target,
		Sourcefile: rel,
	}
	if t.opts.ModuleIDs {
		opts.Format = api.FormatCommonJS
	}

	res := api.Transform(string(data), opts)
	if len(res.Errors) > 0 {
		return messageError(rel, res.Errors[0])
	}

	code := string(res.Code)
	if t.opts.ModuleIDs {
		code = wrapModule(ModuleID(rel, t.opts.ModuleRoot), code)
	}

	dst := filepath.Join(output, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(code), 0o644)
}

// ModuleID derives the loader id of a file: its path below root without
// the extension.
func ModuleID(rel, root string) string {
	id := strings.TrimSuffix(rel, path.Ext(rel))
	if root != "" {
		if trimmed, ok := strings.CutPrefix(id, root+"/"); ok {
			return trimmed
		}
	}
	return id
}

func wrapModule(id, code string) string {
	var b strings.Builder
	b.Grow(len(code) + len(id) + 96)
	fmt.Fprintf(&b, "define(%q, [\"exports\", \"require\", \"module\"], function (exports, require, module) {\n", id)
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("});\n")
	return b.String()
}

// messageError converts an esbuild diagnostic into an error carrying the
// source position.
func messageError(rel string, msg api.Message) error {
	cause := errors.New(msg.Text)
	if msg.Location == nil {
		return fmt.Errorf("transpile %s: %w", rel, cause)
	}
	file := msg.Location.File
	if file == "" {
		file = rel
	}
	return &tree.LocationError{
		Loc: tree.Location{
			File:     file,
			Line:     msg.Location.Line,
			Column:   msg.Location.Column + 1,
			LineText: msg.Location.LineText,
		},
		Err: cause,
	}
}
