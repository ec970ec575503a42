// SPDX-License-Identifier: MPL-2.0

// Package transform provides the primitive tree transforms the application
// graph is composed of: Funnel (filter and re-root), Merge, Concat,
// Transpile, TokenReplace and ConfigLoader. Every constructor returns a
// tree.Transform whose Build is a pure function of its input directories.
package transform
