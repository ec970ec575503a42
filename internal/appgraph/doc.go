// SPDX-License-Identifier: MPL-2.0

// Package appgraph assembles the build graph of a project from its
// configuration and addons.
//
// An App is constructed once per command. Every named sub-tree (addon
// bundle, vendor tree, config, boot files, processed app, ...) is built at
// most once per App and shared between the trees consuming it, so the
// graph handed to the tree builder is a DAG rather than a tree of copies.
package appgraph
