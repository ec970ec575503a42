// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: tree fixtures
// (WriteFiles, ReadFiles), working directory management and a controllable
// FakeClock for timing-sensitive code.
package testutil
