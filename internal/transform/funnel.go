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

var (
	// ErrSourceDirMissing is returned by a strict Funnel whose SrcDir does
	// not exist in its input.
	ErrSourceDirMissing = errors.New("funnel source directory does not exist")

	// ErrFileMissing is returned by a strict Funnel when a file listed in
	// Files is absent.
	ErrFileMissing = errors.New("funnel file not found")
)

type (
	// FunnelOptions selects and re-roots part of a tree.
	FunnelOptions struct {
		// SrcDir is the directory of the input to select from ("" for the root).
		SrcDir string
		// DestDir is where the selection is placed in the output ("" for the root).
		DestDir string
		// Include keeps only paths matching one of these globs. Empty keeps all.
		Include []string
		// Exclude drops paths matching one of these globs.
		Exclude []string
		// Files lists exact paths to keep. When set, Include is ignored.
		Files []string
		// AllowEmpty turns a missing SrcDir or listed file into an empty
		// result instead of an error.
		AllowEmpty bool
		// Annotation overrides the default node label.
		Annotation string
	}

	// FunnelNode is the Transform returned by Funnel.
	FunnelNode struct {
		input tree.Node
		opts  FunnelOptions
	}
)

// Funnel returns a node keeping the paths of input selected by opts.
func Funnel(input tree.Node, opts FunnelOptions) *FunnelNode {
	opts.SrcDir = cleanRel(opts.SrcDir)
	opts.DestDir = cleanRel(opts.DestDir)
	return &FunnelNode{input: input, opts: opts}
}

func (f *FunnelNode) Annotation() string {
	return annotate(f.opts.Annotation, fmt.Sprintf("Funnel(%s -> %s)", orRoot(f.opts.SrcDir), orRoot(f.opts.DestDir)))
}

func (f *FunnelNode) Inputs() []tree.Node { return []tree.Node{f.input} }

func (f *FunnelNode) Build(ctx context.Context, inputs []string, output string) error {
	if err := validatePatterns(append(append([]string(nil), f.opts.Include...), f.opts.Exclude...)); err != nil {
		return err
	}

	root := filepath.Join(inputs[0], filepath.FromSlash(f.opts.SrcDir))
	if !tree.IsDir(root) {
		if f.opts.AllowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrSourceDirMissing, orRoot(f.opts.SrcDir))
	}

	selected, err := f.selectFiles(root)
	if err != nil {
		return err
	}

	pairs := make([]tree.CopyPair, 0, len(selected))
	for _, rel := range selected {
		pairs = append(pairs, tree.CopyPair{
			Src: filepath.Join(root, filepath.FromSlash(rel)),
			Dst: filepath.Join(output, filepath.FromSlash(path.Join(f.opts.DestDir, rel))),
		})
	}
	return tree.CopyAll(ctx, pairs)
}

func (f *FunnelNode) selectFiles(root string) ([]string, error) {
	var candidates []string
	if len(f.opts.Files) > 0 {
		for _, file := range f.opts.Files {
			rel := cleanRel(file)
			if tree.Exists(filepath.Join(root, filepath.FromSlash(rel))) {
				candidates = append(candidates, rel)
				continue
			}
			if !f.opts.AllowEmpty {
				return nil, fmt.Errorf("%w: %s", ErrFileMissing, path.Join(f.opts.SrcDir, rel))
			}
		}
	} else {
		all, err := tree.ListFiles(root)
		if err != nil {
			return nil, err
		}
		for _, rel := range all {
			if len(f.opts.Include) > 0 {
				ok, err := matchAny(f.opts.Include, rel)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			candidates = append(candidates, rel)
		}
	}

	kept := candidates[:0]
	for _, rel := range candidates {
		excluded, err := matchAny(f.opts.Exclude, rel)
		if err != nil {
			return nil, err
		}
		if !excluded {
			kept = append(kept, rel)
		}
	}
	return kept, nil
}

func orRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
