// SPDX-License-Identifier: MPL-2.0

// Package serve runs the watch, build, serve loop behind "driven serve".
//
// A single goroutine owns the loop. The watcher only signals a pending
// rebuild over a one-slot channel, so a burst of changes during a build
// produces exactly one follow-up build. The served process is always
// killed, and its exit observed, before its replacement is started.
package serve
