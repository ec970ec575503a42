// SPDX-License-Identifier: MPL-2.0

// Package addon defines the capability contract between the application
// graph and its addons, plus two built-in implementations: DirAddon, which
// contributes trees from a directory on disk, and LintAddon, which turns
// JavaScript diagnostics into generated test files.
package addon
