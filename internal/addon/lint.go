// SPDX-License-Identifier: MPL-2.0

package addon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"driven-cli/internal/tree"
)

// LintTestSuffix is appended to the module path of every generated lint test.
const LintTestSuffix = ".lint-test.js"

type (
	// LintAddon reports esbuild syntax errors and warnings of JavaScript
	// files as generated QUnit tests, so lint failures show up in the test
	// run instead of stopping the build.
	LintAddon struct{}

	lintNode struct {
		input tree.Node
		kind  Kind
	}
)

// NewLintAddon returns the built-in linter.
func NewLintAddon() *LintAddon { return &LintAddon{} }

func (*LintAddon) Name() string { return "driven-lint" }

func (*LintAddon) LintTree(kind Kind, t tree.Node) tree.Node {
	if t == nil {
		return nil
	}
	return &lintNode{input: t, kind: kind}
}

func (n *lintNode) Annotation() string { return "Lint(" + string(n.kind) + ")" }

func (n *lintNode) Inputs() []tree.Node { return []tree.Node{n.input} }

func (n *lintNode) Build(_ context.Context, inputs []string, output string) error {
	files, err := tree.ListFiles(inputs[0])
	if err != nil {
		return err
	}
	for _, rel := range files {
		if !strings.HasSuffix(rel, ".js") || strings.HasSuffix(rel, LintTestSuffix) {
			continue
		}
		src, err := os.ReadFile(filepath.Join(inputs[0], filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		problems := lintSource(rel, string(src))

		dst := filepath.Join(output, filepath.FromSlash(strings.TrimSuffix(rel, ".js")+LintTestSuffix))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, []byte(lintTest(n.kind, rel, problems)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// lintSource returns one line per esbuild error or warning of src.
func lintSource(rel, src string) []string {
	res := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: rel,
		LogLevel:   api.LogLevelSilent,
	})
	var problems []string
	for _, group := range [][]api.Message{res.Errors, res.Warnings} {
		for _, msg := range group {
			if msg.Location != nil {
				problems = append(problems, fmt.Sprintf("%d:%d %s", msg.Location.Line, msg.Location.Column+1, msg.Text))
			} else {
				problems = append(problems, msg.Text)
			}
		}
	}
	return problems
}

func lintTest(kind Kind, rel string, problems []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUnit.module(%s);\n", strconv.Quote("Lint | "+string(kind)))
	fmt.Fprintf(&b, "QUnit.test(%s, function (assert) {\n", strconv.Quote(rel+" should pass lint"))
	b.WriteString("  assert.expect(1);\n")
	msg := rel + " should pass lint."
	if len(problems) > 0 {
		msg = rel + " should pass lint.\n" + strings.Join(problems, "\n")
	}
	fmt.Fprintf(&b, "  assert.ok(%t, %s);\n", len(problems) == 0, strconv.Quote(msg))
	b.WriteString("});\n")
	return b.String()
}
