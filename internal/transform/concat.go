// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"driven-cli/internal/tree"
)

// DefaultSeparator joins concatenated files when ConcatOptions.Separator is empty.
const DefaultSeparator = "\n"

var (
	// ErrConcatNoInput is returned when no body file matched and AllowNone is unset.
	ErrConcatNoInput = errors.New("concat: no input files matched")

	// ErrConcatFileMissing is returned for a header, footer or literal
	// input path that does not exist.
	ErrConcatFileMissing = errors.New("concat: file not found")
)

type (
	// ConcatOptions describes one concatenated output file.
	ConcatOptions struct {
		// InputFiles are paths or globs forming the body, in order. Matches
		// of one glob are sorted lexically.
		InputFiles []string
		// HeaderFiles are written first, in listed order.
		HeaderFiles []string
		// FooterFiles are written last, in listed order.
		FooterFiles []string
		// OutputFile is the path of the result inside the output tree.
		OutputFile string
		// Separator joins the parts. Defaults to DefaultSeparator.
		Separator string
		// AllowNone produces the output even when the body is empty.
		AllowNone bool
		// Annotation overrides the default node label.
		Annotation string
	}

	// ConcatNode is the Transform returned by Concat.
	ConcatNode struct {
		input tree.Node
		opts  ConcatOptions
	}
)

// Concat returns a node with a single file, OutputFile, holding the
// headers, the body and the footers of input joined by Separator.
func Concat(input tree.Node, opts ConcatOptions) *ConcatNode {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	opts.OutputFile = cleanRel(opts.OutputFile)
	return &ConcatNode{input: input, opts: opts}
}

func (c *ConcatNode) Annotation() string {
	return annotate(c.opts.Annotation, "Concat("+c.opts.OutputFile+")")
}

func (c *ConcatNode) Inputs() []tree.Node { return []tree.Node{c.input} }

func (c *ConcatNode) Build(_ context.Context, inputs []string, output string) error {
	if c.opts.OutputFile == "" {
		return errors.New("concat: output file is required")
	}
	if err := validatePatterns(c.opts.InputFiles); err != nil {
		return err
	}

	ordered, err := c.order(inputs[0])
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(ordered))
	for _, rel := range ordered {
		data, err := os.ReadFile(filepath.Join(inputs[0], filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("concat: read %s: %w", rel, err)
		}
		parts = append(parts, string(data))
	}

	dst := filepath.Join(output, filepath.FromSlash(c.opts.OutputFile))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(strings.Join(parts, c.opts.Separator)), 0o644)
}

// order resolves the file list: headers, then each body pattern's matches
// (deduplicated, without headers and footers), then footers.
func (c *ConcatNode) order(root string) ([]string, error) {
	boundary := make(map[string]bool)
	var headers, footers []string
	for _, list := range []struct {
		in  []string
		out *[]string
	}{{c.opts.HeaderFiles, &headers}, {c.opts.FooterFiles, &footers}} {
		for _, f := range list.in {
			rel := cleanRel(f)
			if !tree.Exists(filepath.Join(root, filepath.FromSlash(rel))) {
				return nil, fmt.Errorf("%w: %s", ErrConcatFileMissing, rel)
			}
			boundary[rel] = true
			*list.out = append(*list.out, rel)
		}
	}

	all, err := tree.ListFiles(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var body []string
	for _, pattern := range c.opts.InputFiles {
		pattern = cleanRel(pattern)
		if !isGlob(pattern) {
			if !tree.Exists(filepath.Join(root, filepath.FromSlash(pattern))) {
				return nil, fmt.Errorf("%w: %s", ErrConcatFileMissing, pattern)
			}
			if !boundary[pattern] && !seen[pattern] {
				seen[pattern] = true
				body = append(body, pattern)
			}
			continue
		}
		for _, rel := range all {
			ok, err := matchAny([]string{pattern}, rel)
			if err != nil {
				return nil, err
			}
			if ok && !boundary[rel] && !seen[rel] {
				seen[rel] = true
				body = append(body, rel)
			}
		}
	}

	if len(body) == 0 && !c.opts.AllowNone {
		return nil, fmt.Errorf("%w: %s", ErrConcatNoInput, strings.Join(c.opts.InputFiles, ", "))
	}

	ordered := make([]string, 0, len(headers)+len(body)+len(footers))
	ordered = append(ordered, headers...)
	ordered = append(ordered, body...)
	return append(ordered, footers...), nil
}
