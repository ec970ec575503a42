// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"errors"
	"fmt"
)

type (
	// Node is an opaque handle to a directory tree produced by evaluating a
	// pure transform over its declared inputs. Identity is the node value
	// itself, so implementations must be pointer types. A node is never
	// mutated after construction.
	Node interface {
		// Annotation is a short human readable label used in logs and errors.
		Annotation() string
	}

	// Source is a leaf node backed by a directory that already exists on disk.
	Source interface {
		Node
		// SourceDir returns the directory the node reads from.
		SourceDir() string
		// Watched reports whether changes below SourceDir should trigger a rebuild.
		Watched() bool
	}

	// Transform is an interior node. Build receives one directory per
	// declared input (same order as Inputs) and must write its whole result
	// into output, which exists and is empty. Build must not modify inputs.
	Transform interface {
		Node
		Inputs() []Node
		Build(ctx context.Context, inputs []string, output string) error
	}

	// Location identifies a position inside a source file.
	Location struct {
		File     string
		Line     int
		Column   int
		LineText string
	}

	// LocationError is returned by transforms that can point at the
	// offending source position (e.g. a transpile syntax error).
	LocationError struct {
		Loc Location
		Err error
	}

	// BuildError wraps any failure raised while evaluating a node.
	BuildError struct {
		// Annotation of the node that failed.
		Annotation string
		Err        error
	}
)

// String renders the location as file:line:column.
func (l Location) String() string {
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Loc, e.Err)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Annotation, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Location returns the source position attached anywhere in the error
// chain, or nil when the failing transform could not identify one.
func (e *BuildError) Location() *Location {
	var locErr *LocationError
	if errors.As(e.Err, &locErr) {
		loc := locErr.Loc
		return &loc
	}
	return nil
}

// ErrorLocation extracts a Location from any error chain.
func ErrorLocation(err error) *Location {
	var locErr *LocationError
	if errors.As(err, &locErr) {
		loc := locErr.Loc
		return &loc
	}
	return nil
}
