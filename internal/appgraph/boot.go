// SPDX-License-Identifier: MPL-2.0

package appgraph

import (
	"embed"
	"io/fs"
	"path"
	"regexp"

	"driven-cli/internal/transform"
)

// BootDir is where the boot files are placed in the output.
const BootDir = "vendor/driven-cli"

const (
	vendorPrefixFile      = "vendor-prefix.js"
	vendorSuffixFile      = "vendor-suffix.js"
	appPrefixFile         = "app-prefix.js"
	appSuffixFile         = "app-suffix.js"
	appBootFile           = "app-boot.js"
	testSupportPrefixFile = "test-support-prefix.js"
	testSupportSuffixFile = "test-support-suffix.js"
	entryFile             = "entry.js"
)

//go:embed boot/*.js
var bootFiles embed.FS

var bootFileNames = []string{
	vendorPrefixFile,
	vendorSuffixFile,
	appPrefixFile,
	appSuffixFile,
	appBootFile,
	testSupportPrefixFile,
	testSupportSuffixFile,
	entryFile,
}

func bootFS() fs.FS {
	sub, err := fs.Sub(bootFiles, "boot")
	if err != nil {
		panic(err)
	}
	return sub
}

// bootPath returns the output path of a boot file.
func bootPath(name string) string {
	return path.Join(BootDir, name)
}

// replacePatterns are the tokens substituted into the boot files.
func (a *App) replacePatterns() []transform.Pattern {
	return []transform.Pattern{
		{Match: regexp.MustCompile(`\{\{MODULE_PREFIX\}\}`), Replacement: transform.ConfigValue("modulePrefix")},
		{Match: regexp.MustCompile(`\{\{ENV\}\}`), Replacement: transform.ConfigValue("environment")},
		{Match: regexp.MustCompile(`\{\{CONFIG_JSON\}\}`), Replacement: transform.ConfigJSON()},
		{Match: regexp.MustCompile(`\{\{VENDOR_PATH\}\}`), Replacement: constant(a.project.OutputPaths.Vendor)},
		{Match: regexp.MustCompile(`\{\{APP_PATH\}\}`), Replacement: constant(a.project.OutputPaths.App)},
	}
}

func constant(s string) func(map[string]any) (string, error) {
	return func(map[string]any) (string, error) { return s, nil }
}
