// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"driven-cli/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "driven"
	// EnvPrefix prefixes the environment variables overriding project settings
	// (DRIVEN_OUTPUT_DIR, DRIVEN_SERVE_INTERPRETER, ...).
	EnvPrefix = "DRIVEN"
	// EnvVarEnvironment selects the active environment.
	EnvVarEnvironment = "DRIVEN_ENV"
	// EnvVarTestCommand forces tests and hinting on when set.
	EnvVarTestCommand = "DRIVEN_TEST_COMMAND"

	// maxProjectFileSize bounds how much of a project file is read.
	maxProjectFileSize = 1 << 20
)

// ProjectFileNames are probed in order inside the project directory.
var ProjectFileNames = []string{"driven.cue", "driven.toml", "driven.yaml", "driven.yml"}

//go:embed project_schema.cue
var projectSchema string

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ProjectDir is the project root. Defaults to the working directory.
	ProjectDir string
	// ConfigFilePath forces loading from a specific project file when set.
	ConfigFilePath string
	// Environment overrides both the project file and DRIVEN_ENV when set.
	Environment string
}

// Load resolves the project configuration: built-in defaults, then the
// project file, then DRIVEN_* environment variables, then explicit options.
func Load(ctx context.Context, opts LoadOptions) (*Project, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	root := opts.ProjectDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	v := newViper()

	cfgPath := opts.ConfigFilePath
	if cfgPath != "" {
		if !fileExists(cfgPath) {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(cfgPath).
				WithSuggestion("Verify the file path passed to --config").
				WithSuggestion("Omit --config to use driven.cue from the project directory").
				Wrap(fmt.Errorf("config file not found: %s", cfgPath)).
				BuildError()
		}
	} else {
		cfgPath = findProjectFile(root)
	}

	if cfgPath != "" {
		if err := loadFileIntoViper(v, cfgPath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load project configuration").
				WithResource(cfgPath).
				WithSuggestion("Check the file syntax").
				WithSuggestion("Verify the values match the project schema").
				WithIssue(issue.ProjectConfigInvalidId).
				Wrap(err).
				BuildError()
		}
	}

	if opts.Environment != "" {
		v.Set("environment", opts.Environment)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	p.Root = root
	p.ConfigFile = cfgPath
	if p.Name == "" {
		p.Name = ProjectName(strings.ToLower(filepath.Base(root)))
	}

	if valid, errs := p.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate project configuration").
			WithResource(cfgPath).
			WithSuggestion("Set 'name' explicitly when the directory name is not a valid module prefix").
			WithIssue(issue.ProjectConfigInvalidId).
			Wrap(errs[0]).
			BuildError()
	}
	return &p, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultProject()
	v.SetDefault("environment", defaults.Environment)
	v.SetDefault("entry", defaults.Entry)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("trees.app", defaults.Trees.App)
	v.SetDefault("trees.tests", defaults.Trees.Tests)
	v.SetDefault("trees.vendor", defaults.Trees.Vendor)
	v.SetDefault("trees.public", defaults.Trees.Public)
	v.SetDefault("trees.config", defaults.Trees.Config)
	v.SetDefault("output_paths.app", defaults.OutputPaths.App)
	v.SetDefault("output_paths.vendor", defaults.OutputPaths.Vendor)
	v.SetDefault("output_paths.test_support", defaults.OutputPaths.TestSupport)
	v.SetDefault("output_paths.test_support_css", defaults.OutputPaths.TestSupportCSS)
	v.SetDefault("features.tests", defaults.Features.Tests)
	v.SetDefault("features.hinting", defaults.Features.Hinting)
	v.SetDefault("features.lint", defaults.Features.Lint)
	v.SetDefault("serve.interpreter", defaults.Serve.Interpreter)
	v.SetDefault("serve.debounce", defaults.Serve.Debounce)
	v.SetDefault("test_command", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("environment", EnvVarEnvironment)
	_ = v.BindEnv("test_command", EnvVarTestCommand)
	return v
}

func findProjectFile(root string) string {
	for _, name := range ProjectFileNames {
		p := filepath.Join(root, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadFileIntoViper decodes the project file according to its extension,
// validates it against the #Project schema, and merges it into Viper.
func loadFileIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxProjectFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxProjectFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(projectSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile project schema: %w", schemaValue.Err())
	}
	schema := schemaValue.LookupPath(cue.ParsePath("#Project"))

	var userValue cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		userValue = ctx.CompileBytes(data, cue.Filename(path))
	case ".toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		userValue = ctx.Encode(m)
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if m == nil {
			m = map[string]any{}
		}
		userValue = ctx.Encode(m)
	default:
		return fmt.Errorf("%s: unsupported project file format %q", path, ext)
	}
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
