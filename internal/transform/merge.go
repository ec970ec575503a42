// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"driven-cli/internal/tree"
)

// ErrTypeConflict is returned when one input contributes a file at a path
// that another input uses as a directory. Overwrite does not resolve it.
var ErrTypeConflict = errors.New("merge: file and directory at the same path")

type (
	// MergeOptions controls how Merge resolves paths contributed twice.
	MergeOptions struct {
		// Overwrite lets the later input win when two inputs contribute the
		// same path. Without it such a path is a *MergeConflictError.
		Overwrite bool
		// Annotation overrides the default node label.
		Annotation string
	}

	// MergeConflictError names a path contributed by two inputs of a merge
	// that does not allow overwriting.
	MergeConflictError struct {
		Path   string
		First  string
		Second string
	}

	// MergeNode is the Transform returned by Merge.
	MergeNode struct {
		inputs []tree.Node
		opts   MergeOptions
	}

	owner struct {
		index int
		src   string
	}
)

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: %q is contributed by both %s and %s (pass overwrite to let the later tree win)",
		e.Path, e.First, e.Second)
}

// Merge returns a node holding the union of inputs. With Overwrite the
// merge is right-biased: for a path present in several inputs the one
// listed last wins.
func Merge(inputs []tree.Node, opts MergeOptions) *MergeNode {
	return &MergeNode{inputs: inputs, opts: opts}
}

func (m *MergeNode) Annotation() string {
	if m.opts.Annotation != "" {
		return m.opts.Annotation
	}
	if m.opts.Overwrite {
		return fmt.Sprintf("Merge(%d trees, overwrite)", len(m.inputs))
	}
	return fmt.Sprintf("Merge(%d trees)", len(m.inputs))
}

func (m *MergeNode) Inputs() []tree.Node { return m.inputs }

func (m *MergeNode) Build(ctx context.Context, inputs []string, output string) error {
	files := make(map[string]owner)
	dirs := make(map[string]int)
	var order []string

	for i, dir := range inputs {
		rels, err := tree.ListFiles(dir)
		if err != nil {
			return fmt.Errorf("list %s: %w", m.inputs[i].Annotation(), err)
		}
		for _, rel := range rels {
			if prev, isDir := dirs[rel]; isDir {
				return fmt.Errorf("%w: %q is a file in %s and a directory in %s",
					ErrTypeConflict, rel, m.inputs[i].Annotation(), m.inputs[prev].Annotation())
			}
			for parent := path.Dir(rel); parent != "."; parent = path.Dir(parent) {
				if prev, isFile := files[parent]; isFile {
					return fmt.Errorf("%w: %q is a file in %s and a directory in %s",
						ErrTypeConflict, parent, m.inputs[prev.index].Annotation(), m.inputs[i].Annotation())
				}
				if _, seen := dirs[parent]; !seen {
					dirs[parent] = i
				}
			}

			src := filepath.Join(dir, filepath.FromSlash(rel))
			if prev, dup := files[rel]; dup {
				if !m.opts.Overwrite {
					return &MergeConflictError{
						Path:   rel,
						First:  m.inputs[prev.index].Annotation(),
						Second: m.inputs[i].Annotation(),
					}
				}
				files[rel] = owner{index: i, src: src}
				continue
			}
			files[rel] = owner{index: i, src: src}
			order = append(order, rel)
		}
	}

	pairs := make([]tree.CopyPair, 0, len(order))
	for _, rel := range order {
		pairs = append(pairs, tree.CopyPair{
			Src: files[rel].src,
			Dst: filepath.Join(output, filepath.FromSlash(rel)),
		})
	}
	return tree.CopyAll(ctx, pairs)
}
