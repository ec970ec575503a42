// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"driven-cli/internal/tree"
)

type (
	// Pattern is one substitution of TokenReplace. Replacement is called at
	// most once per evaluation with the decoded configuration.
	Pattern struct {
		Match       *regexp.Regexp
		Replacement func(config map[string]any) (string, error)
	}

	// TokenReplaceOptions configures TokenReplace.
	TokenReplaceOptions struct {
		// ConfigPath is the JSON file inside the config tree.
		ConfigPath string
		// Files lists the paths of the input tree to rewrite. Other files
		// are copied unchanged.
		Files []string
		// Patterns are applied to each file in order.
		Patterns []Pattern
		// Annotation overrides the default node label.
		Annotation string
	}

	// TokenReplaceNode is the Transform returned by TokenReplace.
	TokenReplaceNode struct {
		input  tree.Node
		config tree.Node
		opts   TokenReplaceOptions
	}
)

// TokenReplace returns a copy of input in which every listed file has each
// pattern replaced by a value computed from the JSON configuration found at
// ConfigPath inside configTree.
func TokenReplace(input, configTree tree.Node, opts TokenReplaceOptions) *TokenReplaceNode {
	opts.ConfigPath = cleanRel(opts.ConfigPath)
	return &TokenReplaceNode{input: input, config: configTree, opts: opts}
}

func (r *TokenReplaceNode) Annotation() string {
	return annotate(r.opts.Annotation, "TokenReplace("+r.opts.ConfigPath+")")
}

func (r *TokenReplaceNode) Inputs() []tree.Node { return []tree.Node{r.input, r.config} }

func (r *TokenReplaceNode) Build(ctx context.Context, inputs []string, output string) error {
	if err := tree.CopyTree(ctx, inputs[0], output); err != nil {
		return err
	}

	loadConfig := sync.OnceValues(func() (map[string]any, error) {
		cfgFile := filepath.Join(inputs[1], filepath.FromSlash(r.opts.ConfigPath))
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", r.opts.ConfigPath, err)
		}
		var cfg map[string]any
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", r.opts.ConfigPath, err)
		}
		return cfg, nil
	})

	replacements := make([]string, len(r.opts.Patterns))
	resolved := make([]bool, len(r.opts.Patterns))
	replacement := func(i int) (string, error) {
		if resolved[i] {
			return replacements[i], nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		val, err := r.opts.Patterns[i].Replacement(cfg)
		if err != nil {
			return "", fmt.Errorf("replacement for %s: %w", r.opts.Patterns[i].Match, err)
		}
		replacements[i], resolved[i] = val, true
		return val, nil
	}

	for _, file := range r.opts.Files {
		rel := cleanRel(file)
		path := filepath.Join(output, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("token replace %s: %w", rel, err)
		}
		content := string(data)
		for i, p := range r.opts.Patterns {
			if !p.Match.MatchString(content) {
				continue
			}
			val, err := replacement(i)
			if err != nil {
				return err
			}
			content = p.Match.ReplaceAllLiteralString(content, val)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ConfigValue returns a Replacement yielding the string form of the
// top-level key of the configuration.
func ConfigValue(key string) func(map[string]any) (string, error) {
	return func(cfg map[string]any) (string, error) {
		v, ok := cfg[key]
		if !ok {
			return "", fmt.Errorf("config has no %q key", key)
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// ConfigJSON returns a Replacement yielding the whole configuration as
// compact JSON.
func ConfigJSON() func(map[string]any) (string, error) {
	return func(cfg map[string]any) (string, error) {
		data, err := json.Marshal(cfg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
