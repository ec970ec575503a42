// SPDX-License-Identifier: MPL-2.0

// Package build runs one evaluation of an application graph and publishes
// the result into the output directory.
package build
