// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of a serve session:
//   - project file loading and CUE schema validation
//   - the first, cold build of an application graph
//   - rebuilds with nothing changed and with one edited file
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
