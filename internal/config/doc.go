// SPDX-License-Identifier: MPL-2.0

// Package config resolves a project's configuration using Viper.
//
// Built-in defaults are overlaid with the project file (driven.cue,
// driven.toml or driven.yaml in the project root, validated against the
// embedded CUE schema project_schema.cue whatever the format), then with
// DRIVEN_* environment variables. DRIVEN_ENV selects the environment and
// DRIVEN_TEST_COMMAND forces tests and hinting on.
package config
