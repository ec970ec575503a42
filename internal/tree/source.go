// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type (
	// DirSource is a Source rooted at an on-disk directory.
	DirSource struct {
		dir     string
		watched bool
	}

	// FSSource materializes an fs.FS (typically an embed.FS) as a tree.
	// It has no inputs, so after its first evaluation it is always reused.
	FSSource struct {
		fsys       fs.FS
		annotation string
	}

	// EmptyTree stands in for an optional directory that does not exist.
	EmptyTree struct {
		annotation string
	}
)

// WatchedDir returns a Source whose changes trigger rebuilds while serving.
func WatchedDir(dir string) *DirSource {
	return &DirSource{dir: dir, watched: true}
}

// UnwatchedDir returns a Source that is read on every build but never watched.
func UnwatchedDir(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Annotation() string {
	if s.watched {
		return "WatchedDir(" + s.dir + ")"
	}
	return "UnwatchedDir(" + s.dir + ")"
}

func (s *DirSource) SourceDir() string { return s.dir }

func (s *DirSource) Watched() bool { return s.watched }

// FromFS wraps fsys as a tree node.
func FromFS(fsys fs.FS, annotation string) *FSSource {
	return &FSSource{fsys: fsys, annotation: annotation}
}

func (s *FSSource) Annotation() string { return s.annotation }

func (s *FSSource) Inputs() []Node { return nil }

func (s *FSSource) Build(_ context.Context, _ []string, output string) error {
	return fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(s.fsys, path)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", path, err)
		}
		dst := filepath.Join(output, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	})
}

// Empty returns a node with no files.
func Empty(annotation string) *EmptyTree {
	return &EmptyTree{annotation: annotation}
}

func (e *EmptyTree) Annotation() string { return e.annotation }

func (e *EmptyTree) Inputs() []Node { return nil }

func (e *EmptyTree) Build(context.Context, []string, string) error { return nil }

// WatchedDirs walks the graph below root and returns the directories of
// every watched Source, deduplicated, in discovery order.
func WatchedDirs(root Node) []string {
	var (
		dirs []string
		seen = make(map[Node]bool)
		dup  = make(map[string]bool)
	)
	var visit func(Node)
	visit = func(n Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		switch v := n.(type) {
		case Source:
			if v.Watched() && !dup[v.SourceDir()] {
				dup[v.SourceDir()] = true
				dirs = append(dirs, v.SourceDir())
			}
		case Transform:
			for _, in := range v.Inputs() {
				visit(in)
			}
		}
	}
	visit(root)
	return dirs
}
