// SPDX-License-Identifier: MPL-2.0

// Package tree defines the node contract of the build graph and the
// evaluator that turns a graph into a directory.
//
// A graph is made of Source leaves (directories on disk) and Transform
// interior nodes. Each Transform is a pure function of its input
// directories: it writes its whole result into a fresh output directory
// and never touches its inputs. The Builder evaluates independent nodes of
// the same depth in parallel and keeps the outputs of nodes whose inputs are
// unchanged between two builds.
package tree
