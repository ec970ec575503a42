// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driven-cli/internal/issue"
	"driven-cli/internal/testutil"
	"driven-cli/internal/transform"
	"driven-cli/internal/tree"
)

func newOrchestrator(t *testing.T, root tree.Node, output string, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithTempDir(t.TempDir())}, opts...)
	o, err := New(root, output, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Cleanup() })
	return o
}

func TestBuild_PublishesOutput(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"app/index.js": "index", "app/a/b.js": "b"})
	output := filepath.Join(t.TempDir(), "dist")
	testutil.WriteFiles(t, output, map[string]string{"stale.txt": "old"})

	clock := testutil.NewSteppingClock(time.Time{}, 250*time.Millisecond)
	root := transform.Funnel(tree.WatchedDir(src), transform.FunnelOptions{SrcDir: "app"})
	o := newOrchestrator(t, root, output, WithClock(clock))

	res := o.Build(context.Background())
	require.True(t, res.Success, "build failed: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Nil(t, res.Location)
	assert.Equal(t, output, res.OutputPath)
	assert.Equal(t, 250*time.Millisecond, res.Duration)
	assert.Equal(t, map[string]string{"index.js": "index", "a/b.js": "b"}, testutil.ReadFiles(t, output))
	assert.Equal(t, []string{src}, o.WatchedDirs())
}

func TestBuild_RebuildSeesChanges(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"a.js": "one"})
	output := filepath.Join(t.TempDir(), "dist")
	o := newOrchestrator(t, tree.WatchedDir(src), output)

	require.True(t, o.Build(context.Background()).Success)
	testutil.WriteFiles(t, src, map[string]string{"b.js": "two"})
	require.True(t, o.Build(context.Background()).Success)

	assert.Equal(t, map[string]string{"a.js": "one", "b.js": "two"}, testutil.ReadFiles(t, output))
}

func TestBuild_FailureKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		files     map[string]string
		root      func(src string) tree.Node
		wantIssue issue.Id
		wantLoc   bool
	}{
		{
			name:  "missing tree root",
			files: map[string]string{},
			root: func(src string) tree.Node {
				return transform.Funnel(tree.WatchedDir(filepath.Join(src, "app")), transform.FunnelOptions{})
			},
			wantIssue: issue.TreeRootMissingId,
		},
		{
			name:  "merge conflict",
			files: map[string]string{"a/x.js": "a", "b/x.js": "b"},
			root: func(src string) tree.Node {
				return transform.Merge([]tree.Node{
					tree.WatchedDir(filepath.Join(src, "a")),
					tree.WatchedDir(filepath.Join(src, "b")),
				}, transform.MergeOptions{})
			},
			wantIssue: issue.MergeConflictId,
		},
		{
			name:  "syntax error",
			files: map[string]string{"app/index.js": "var a = 1;\nvar = ;\n"},
			root: func(src string) tree.Node {
				return transform.Transpile(tree.WatchedDir(filepath.Join(src, "app")), transform.TranspileOptions{})
			},
			wantIssue: issue.TranspileFailedId,
			wantLoc:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := t.TempDir()
			testutil.WriteFiles(t, src, tt.files)
			output := filepath.Join(t.TempDir(), "dist")
			testutil.WriteFiles(t, output, map[string]string{"index.js": "previous"})

			o := newOrchestrator(t, tt.root(src), output)
			res := o.Build(context.Background())

			require.False(t, res.Success)
			var ae *issue.ActionableError
			require.ErrorAs(t, res.Err, &ae)
			assert.Equal(t, tt.wantIssue, ae.Issue)
			var be *tree.BuildError
			assert.ErrorAs(t, res.Err, &be, "the node failure stays reachable")
			if tt.wantLoc {
				require.NotNil(t, res.Location)
				assert.Equal(t, "index.js", res.Location.File)
				assert.Equal(t, 2, res.Location.Line)
			} else {
				assert.Nil(t, res.Location)
			}
			assert.Equal(t, map[string]string{"index.js": "previous"}, testutil.ReadFiles(t, output))
		})
	}
}

func TestBuild_AfterCleanup(t *testing.T) {
	t.Parallel()

	o, err := New(tree.WatchedDir(t.TempDir()), filepath.Join(t.TempDir(), "dist"), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, o.Cleanup())
	require.NoError(t, o.Cleanup(), "Cleanup is idempotent")

	res := o.Build(context.Background())
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, tree.ErrBuilderClosed)
}
