// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dario.cat/mergo"

	"driven-cli/internal/tree"
)

// EnvironmentFile is the per-project configuration read by ConfigLoader.
const EnvironmentFile = "environment.json"

type (
	// ConfigLoaderOptions configures ConfigLoader.
	ConfigLoaderOptions struct {
		// Env is the active environment name.
		Env string
		// Tests also writes the configuration of the test environment.
		Tests bool
		// ModulePrefix is the default value of the modulePrefix key.
		ModulePrefix string
	}

	// ConfigLoaderNode is the Transform returned by ConfigLoader.
	ConfigLoaderNode struct {
		input tree.Node
		opts  ConfigLoaderOptions
	}

	environmentFile struct {
		Base         map[string]any            `json:"base"`
		Environments map[string]map[string]any `json:"environments"`
	}
)

// ConfigLoader returns a node writing environments/<env>.json (and
// environments/test.json when tests are enabled) from the environment.json
// file of configDir.
func ConfigLoader(configDir tree.Node, opts ConfigLoaderOptions) *ConfigLoaderNode {
	return &ConfigLoaderNode{input: configDir, opts: opts}
}

func (c *ConfigLoaderNode) Annotation() string {
	return "ConfigLoader(" + c.opts.Env + ")"
}

func (c *ConfigLoaderNode) Inputs() []tree.Node { return []tree.Node{c.input} }

func (c *ConfigLoaderNode) Build(_ context.Context, inputs []string, output string) error {
	file, err := readEnvironmentFile(filepath.Join(inputs[0], EnvironmentFile))
	if err != nil {
		return err
	}

	envs := []string{c.opts.Env}
	if c.opts.Tests && c.opts.Env != "test" {
		envs = append(envs, "test")
	}

	dir := filepath.Join(output, "environments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, env := range envs {
		cfg, err := ResolveEnvironment(file.Base, file.Environments[env], env, c.opts.ModulePrefix)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, env+".json"), append(data, '\n'), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ResolveEnvironment layers overrides over base over the built-in
// defaults. The environment key always names env.
func ResolveEnvironment(base, overrides map[string]any, env, modulePrefix string) (map[string]any, error) {
	cfg := map[string]any{
		"modulePrefix": modulePrefix,
		"environment":  env,
	}
	for _, layer := range []map[string]any{base, overrides} {
		if len(layer) == 0 {
			continue
		}
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge %s configuration: %w", env, err)
		}
	}
	cfg["environment"] = env
	return cfg, nil
}

func readEnvironmentFile(path string) (environmentFile, error) {
	var file environmentFile
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return file, err
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("decode %s: %w", EnvironmentFile, err)
	}
	return file, nil
}
