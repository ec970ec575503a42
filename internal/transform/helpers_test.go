// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"testing"

	"driven-cli/internal/testutil"
	"driven-cli/internal/tree"
)

// fixture writes files to a fresh directory and returns it as a source node.
func fixture(t *testing.T, files map[string]string) tree.Node {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)
	return tree.UnwatchedDir(dir)
}

// evaluate builds root and returns the files of its output.
func evaluate(t *testing.T, root tree.Node) map[string]string {
	t.Helper()
	out, err := evaluateErr(t, root)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return out
}

func evaluateErr(t *testing.T, root tree.Node) (map[string]string, error) {
	t.Helper()
	b, err := tree.NewBuilder(root, tree.WithTempDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewBuilder() error: %v", err)
	}
	t.Cleanup(func() { _ = b.Cleanup() })

	dir, err := b.Build(context.Background())
	if err != nil {
		return nil, err
	}
	return testutil.ReadFiles(t, dir), nil
}
