// SPDX-License-Identifier: MPL-2.0

// Package assets records the single files a project imports into its
// build: vendor and test JavaScript in load order, and every other file as
// a copy record.
package assets

import (
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	// TypeVendor places a JS import in the vendor bundle. It is the default.
	TypeVendor = "vendor"
	// TypeTest places a JS import in the test-support bundle.
	TypeTest = "test"

	// DefaultEnvironment is used for an EnvPaths without the active environment.
	DefaultEnvironment = "development"

	globChars = "*?[{,"
)

var (
	// ErrMissingExtension is returned for an import path without a file
	// extension. Directories belong in tree roots, not imports.
	ErrMissingExtension = errors.New("import path must name a file with an extension; use a tree root for directories")

	// ErrGlobPath is returned for an import path containing glob metacharacters.
	ErrGlobPath = errors.New("import path must be a single file, not a glob pattern")

	// ErrInvalidImportType is returned for a JS import whose type is neither
	// vendor nor test.
	ErrInvalidImportType = errors.New("import type must be either vendor or test")
)

type (
	// Asset names the file to import, either directly or per environment.
	Asset interface {
		// Resolve returns the path to import in env, or false when the asset
		// does not apply to env.
		Resolve(env string) (string, bool)
	}

	// Path is an Asset that applies to every environment.
	Path string

	// EnvPaths maps environment names to paths. An environment without an
	// entry falls back to the development entry.
	EnvPaths map[string]string

	// ImportOptions controls the classification of one import.
	ImportOptions struct {
		// Type is TypeVendor (default when empty) or TypeTest.
		Type string
		// Prepend places a vendor JS file before every previous import.
		Prepend bool
		// DestDir is the output directory of a non-JS file. "/" means the
		// output root; empty keeps the file's directory below its root.
		DestDir string
	}

	// CopyRecord describes a non-JS import copied verbatim into the output.
	CopyRecord struct {
		// Source is the directory holding the file.
		Source string
		// File is the file's base name.
		File string
		// Dest is the output directory; "" is the output root.
		Dest string
	}

	// Registry accumulates imports for one application. It is safe for
	// concurrent use, though imports are normally made during construction.
	Registry struct {
		env    string
		logger *log.Logger

		mu         sync.Mutex
		vendorJS   []string
		testJS     []string
		copies     []CopyRecord
		testStyles []string
	}
)

// Resolve implements Asset.
func (p Path) Resolve(string) (string, bool) {
	return string(p), p != ""
}

// Resolve implements Asset.
func (m EnvPaths) Resolve(env string) (string, bool) {
	if p, ok := m[env]; ok {
		return p, p != ""
	}
	p, ok := m[DefaultEnvironment]
	return p, ok && p != ""
}

// NewRegistry returns an empty registry resolving imports for env. A nil
// logger discards warnings.
func NewRegistry(env string, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Registry{env: env, logger: logger}
}

// Import classifies asset according to opts and records it.
func (r *Registry) Import(asset Asset, opts ImportOptions) error {
	p, ok := asset.Resolve(r.env)
	if !ok {
		return nil
	}
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")

	if strings.ContainsAny(p, globChars) {
		return fmt.Errorf("%w: %s", ErrGlobPath, p)
	}
	ext := path.Ext(p)
	if ext == "" {
		return fmt.Errorf("%w: %s", ErrMissingExtension, p)
	}
	if !strings.Contains(p, "/") {
		r.logger.Warn("importing a file from the root of a tree slows down every build; move it into a subdirectory", "path", p)
	}

	typ := opts.Type
	if typ == "" {
		typ = TypeVendor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ext == ".js" {
		switch typ {
		case TypeVendor:
			if opts.Prepend {
				r.vendorJS = slices.Insert(r.vendorJS, 0, p)
			} else {
				r.vendorJS = append(r.vendorJS, p)
			}
		case TypeTest:
			r.testJS = append(r.testJS, p)
		default:
			return fmt.Errorf("%w: %s (type %q)", ErrInvalidImportType, path.Base(p), typ)
		}
		return nil
	}

	dir := path.Dir(p)
	rec := CopyRecord{Source: dir, File: path.Base(p), Dest: opts.DestDir}
	switch rec.Dest {
	case "/":
		rec.Dest = ""
	case "":
		rec.Dest = subdirectory(dir)
	default:
		rec.Dest = strings.Trim(rec.Dest, "/")
	}
	r.copies = append(r.copies, rec)

	if typ == TypeTest && ext == ".css" {
		r.testStyles = append(r.testStyles, p)
	}
	return nil
}

// VendorJS returns the vendor JS import paths in load order.
func (r *Registry) VendorJS() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.vendorJS)
}

// TestJS returns the test JS import paths in load order.
func (r *Registry) TestJS() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.testJS)
}

// Copies returns the copy records of non-JS imports in import order.
func (r *Registry) Copies() []CopyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.copies)
}

// TestStyles returns the stylesheets imported with TypeTest.
func (r *Registry) TestStyles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.testStyles)
}

// subdirectory drops the first segment of dir ("vendor/fonts/x" becomes
// "fonts/x"), the tree root the file was imported from.
func subdirectory(dir string) string {
	if dir == "." {
		return ""
	}
	_, rest, found := strings.Cut(dir, "/")
	if !found {
		return ""
	}
	return rest
}
