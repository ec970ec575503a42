// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// EnvDevelopment is the default environment.
	EnvDevelopment Environment = "development"
	// EnvTest is the environment used by test runs.
	EnvTest Environment = "test"
	// EnvProduction disables tests and hinting by default.
	EnvProduction Environment = "production"

	// ToggleAuto derives a feature from the environment.
	ToggleAuto Toggle = "auto"
	// ToggleOn forces a feature on.
	ToggleOn Toggle = "on"
	// ToggleOff forces a feature off.
	ToggleOff Toggle = "off"

	// ImportTypeVendor places a JS import in the vendor bundle.
	ImportTypeVendor ImportType = "vendor"
	// ImportTypeTest places a JS import in the test-support bundle.
	ImportTypeTest ImportType = "test"
)

var (
	// ErrInvalidEnvironment is returned when an Environment value is not recognized.
	ErrInvalidEnvironment = errors.New("invalid environment")
	// ErrInvalidToggle is returned when a Toggle value is not recognized.
	ErrInvalidToggle = errors.New("invalid feature toggle")
	// ErrInvalidProjectName is returned for a name unusable as a module prefix.
	ErrInvalidProjectName = errors.New("invalid project name")
	// ErrInvalidImportType is returned when an ImportType value is not recognized.
	ErrInvalidImportType = errors.New("invalid import type")
	// ErrInvalidAddonEntry is the sentinel error wrapped by InvalidAddonEntryError.
	ErrInvalidAddonEntry = errors.New("invalid addon entry")
	// ErrInvalidProject is the sentinel error wrapped by InvalidProjectError.
	ErrInvalidProject = errors.New("invalid project configuration")

	projectNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

type (
	// Environment names the active build environment.
	Environment string

	// InvalidEnvironmentError is returned when an Environment value is not recognized.
	// It wraps ErrInvalidEnvironment for errors.Is() compatibility.
	InvalidEnvironmentError struct {
		Value Environment
	}

	// Toggle is a tri-state feature switch.
	Toggle string

	// InvalidToggleError is returned when a Toggle value is not recognized.
	InvalidToggleError struct {
		Field string
		Value Toggle
	}

	// ProjectName is the application name, also used as its module prefix.
	ProjectName string

	// InvalidProjectNameError is returned for a ProjectName that is empty or
	// contains characters other than lower-case letters, digits, '.', '_' and '-'.
	InvalidProjectNameError struct {
		Value ProjectName
	}

	// ImportType classifies a JS import.
	ImportType string

	// InvalidImportTypeError is returned when an ImportType value is not recognized.
	InvalidImportTypeError struct {
		Value ImportType
	}

	// InvalidAddonEntryError collects the field errors of one addon entry.
	InvalidAddonEntryError struct {
		Index       int
		FieldErrors []error
	}

	// InvalidProjectError collects every field error of a Project.
	InvalidProjectError struct {
		FieldErrors []error
	}

	// Trees names the project directories playing each role, relative to Root.
	Trees struct {
		App    string `json:"app" mapstructure:"app"`
		Tests  string `json:"tests" mapstructure:"tests"`
		Vendor string `json:"vendor" mapstructure:"vendor"`
		Public string `json:"public" mapstructure:"public"`
		Config string `json:"config" mapstructure:"config"`
	}

	// OutputPaths places the generated bundles inside the output directory.
	OutputPaths struct {
		App            string `json:"app" mapstructure:"app"`
		Vendor         string `json:"vendor" mapstructure:"vendor"`
		TestSupport    string `json:"test_support" mapstructure:"test_support"`
		TestSupportCSS string `json:"test_support_css" mapstructure:"test_support_css"`
	}

	// Features switches optional parts of the graph.
	Features struct {
		// Tests includes the test tree and test-support bundles.
		Tests Toggle `json:"tests" mapstructure:"tests"`
		// Hinting includes lint results as generated tests.
		Hinting Toggle `json:"hinting" mapstructure:"hinting"`
		// Lint registers the built-in lint addon.
		Lint bool `json:"lint" mapstructure:"lint"`
	}

	// ImportEntry is one asset imported into the build. Either Path or Paths
	// (per environment) is set.
	ImportEntry struct {
		Path    string            `json:"path" mapstructure:"path"`
		Paths   map[string]string `json:"paths" mapstructure:"paths"`
		Type    ImportType        `json:"type" mapstructure:"type"`
		Prepend bool              `json:"prepend" mapstructure:"prepend"`
		DestDir string            `json:"dest_dir" mapstructure:"dest_dir"`
	}

	// AddonEntry registers a directory addon. Order in the list is merge
	// precedence: later addons win.
	AddonEntry struct {
		Name     string        `json:"name" mapstructure:"name"`
		Path     string        `json:"path" mapstructure:"path"`
		Disabled bool          `json:"disabled" mapstructure:"disabled"`
		Imports  []ImportEntry `json:"imports" mapstructure:"imports"`
	}

	// ServeConfig configures the watch/serve loop.
	ServeConfig struct {
		// Interpreter runs the built entry point. It is split into words with
		// shell quoting rules, so "node --inspect" works.
		Interpreter string `json:"interpreter" mapstructure:"interpreter"`
		// Args are passed to the served process after the entry path.
		Args []string `json:"args" mapstructure:"args"`
		// Debounce is the quiet period before a batch of changes triggers a build.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// Ignore lists extra glob patterns excluded from watching.
		Ignore []string `json:"ignore" mapstructure:"ignore"`
	}

	// Project holds the resolved project configuration.
	Project struct {
		// Root is the absolute project directory. It is never read from the file.
		Root string `json:"-" mapstructure:"-"`
		// ConfigFile is the project file that was loaded, if any.
		ConfigFile string `json:"-" mapstructure:"-"`

		Name        ProjectName   `json:"name" mapstructure:"name"`
		Environment Environment   `json:"environment" mapstructure:"environment"`
		Entry       string        `json:"entry" mapstructure:"entry"`
		OutputDir   string        `json:"output_dir" mapstructure:"output_dir"`
		Trees       Trees         `json:"trees" mapstructure:"trees"`
		OutputPaths OutputPaths   `json:"output_paths" mapstructure:"output_paths"`
		Features    Features      `json:"features" mapstructure:"features"`
		Addons      []AddonEntry  `json:"addons" mapstructure:"addons"`
		VendorFiles []ImportEntry `json:"vendor_files" mapstructure:"vendor_files"`
		Serve       ServeConfig   `json:"serve" mapstructure:"serve"`

		// TestCommand mirrors DRIVEN_TEST_COMMAND; any non-empty value forces
		// tests and hinting on.
		TestCommand string `json:"-" mapstructure:"test_command"`
	}
)

// DefaultProject returns the configuration used when no project file exists.
func DefaultProject() *Project {
	return &Project{
		Environment: EnvDevelopment,
		Entry:       "index.js",
		OutputDir:   "dist",
		Trees: Trees{
			App:    "app",
			Tests:  "tests",
			Vendor: "vendor",
			Public: "public",
			Config: "config",
		},
		OutputPaths: OutputPaths{
			App:            "driven-server.js",
			Vendor:         "assets/vendor.js",
			TestSupport:    "assets/test-support.js",
			TestSupportCSS: "assets/test-support.css",
		},
		Features: Features{
			Tests:   ToggleAuto,
			Hinting: ToggleAuto,
		},
		Serve: ServeConfig{
			Interpreter: "node",
			Debounce:    100 * time.Millisecond,
		},
	}
}

// TestsEnabled resolves Features.Tests: an explicit toggle wins, then a
// set TestCommand, then any environment other than production.
func (p *Project) TestsEnabled() bool {
	return p.resolve(p.Features.Tests)
}

// HintingEnabled resolves Features.Hinting like TestsEnabled.
func (p *Project) HintingEnabled() bool {
	return p.resolve(p.Features.Hinting)
}

func (p *Project) resolve(t Toggle) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	}
	if p.TestCommand != "" {
		return true
	}
	return p.Environment != EnvProduction
}

// String returns the string representation of the Environment.
func (e Environment) String() string { return string(e) }

// IsValid returns whether the Environment is one of the defined environments.
func (e Environment) IsValid() (bool, []error) {
	switch e {
	case EnvDevelopment, EnvTest, EnvProduction:
		return true, nil
	default:
		return false, []error{&InvalidEnvironmentError{Value: e}}
	}
}

// Error implements the error interface for InvalidEnvironmentError.
func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("invalid environment %q (valid: development, test, production)", e.Value)
}

// Unwrap returns ErrInvalidEnvironment for errors.Is() compatibility.
func (e *InvalidEnvironmentError) Unwrap() error { return ErrInvalidEnvironment }

// IsValid returns whether the Toggle is auto, on or off. The zero value
// counts as auto.
func (t Toggle) IsValid() (bool, []error) {
	switch t {
	case "", ToggleAuto, ToggleOn, ToggleOff:
		return true, nil
	default:
		return false, []error{&InvalidToggleError{Value: t}}
	}
}

func (e *InvalidToggleError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid toggle %q (valid: auto, on, off)", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid toggle %q (valid: auto, on, off)", e.Value)
}

func (e *InvalidToggleError) Unwrap() error { return ErrInvalidToggle }

// IsValid returns whether the name can be used as a module prefix.
func (n ProjectName) IsValid() (bool, []error) {
	if !projectNamePattern.MatchString(string(n)) {
		return false, []error{&InvalidProjectNameError{Value: n}}
	}
	return true, nil
}

func (e *InvalidProjectNameError) Error() string {
	return fmt.Sprintf("invalid project name %q (use lower-case letters, digits, '.', '_' and '-')", e.Value)
}

func (e *InvalidProjectNameError) Unwrap() error { return ErrInvalidProjectName }

// IsValid returns whether the ImportType is vendor, test or empty (vendor).
func (t ImportType) IsValid() (bool, []error) {
	switch t {
	case "", ImportTypeVendor, ImportTypeTest:
		return true, nil
	default:
		return false, []error{&InvalidImportTypeError{Value: t}}
	}
}

func (e *InvalidImportTypeError) Error() string {
	return fmt.Sprintf("invalid import type %q (valid: vendor, test)", e.Value)
}

func (e *InvalidImportTypeError) Unwrap() error { return ErrInvalidImportType }

// IsValid returns whether the addon entry names a directory and carries
// valid imports.
func (a AddonEntry) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if strings.TrimSpace(a.Path) == "" {
		errs = append(errs, errors.New("path must not be empty"))
	}
	for _, imp := range a.Imports {
		if valid, fieldErrs := imp.Type.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

func (e *InvalidAddonEntryError) Error() string {
	return fmt.Sprintf("addons[%d]: %s", e.Index, errors.Join(e.FieldErrors...))
}

func (e *InvalidAddonEntryError) Unwrap() error { return ErrInvalidAddonEntry }

// IsValid returns whether every field of the Project is valid.
func (p *Project) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := p.Name.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := p.Environment.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, _ := p.Features.Tests.IsValid(); !valid {
		errs = append(errs, &InvalidToggleError{Field: "features.tests", Value: p.Features.Tests})
	}
	if valid, _ := p.Features.Hinting.IsValid(); !valid {
		errs = append(errs, &InvalidToggleError{Field: "features.hinting", Value: p.Features.Hinting})
	}
	seen := make(map[string]bool)
	for i, a := range p.Addons {
		if valid, fieldErrs := a.IsValid(); !valid {
			errs = append(errs, &InvalidAddonEntryError{Index: i, FieldErrors: fieldErrs})
			continue
		}
		if seen[a.Name] {
			errs = append(errs, &InvalidAddonEntryError{Index: i, FieldErrors: []error{fmt.Errorf("duplicate addon name %q", a.Name)}})
		}
		seen[a.Name] = true
	}
	for _, imp := range p.VendorFiles {
		if valid, fieldErrs := imp.Type.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if strings.TrimSpace(p.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if strings.TrimSpace(p.Entry) == "" {
		errs = append(errs, errors.New("entry must not be empty"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidProjectError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidProjectError.
func (e *InvalidProjectError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid project configuration: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidProject for errors.Is() compatibility.
func (e *InvalidProjectError) Unwrap() error { return ErrInvalidProject }
