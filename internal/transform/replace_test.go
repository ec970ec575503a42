// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenReplace(t *testing.T) {
	t.Parallel()

	files := fixture(t, map[string]string{
		"boot.js":      "boot({{MODULE_PREFIX}}, {{CONFIG_JSON}}); // {{MODULE_PREFIX}}",
		"untouched.js": "{{MODULE_PREFIX}}",
	})
	cfg := fixture(t, map[string]string{
		"environments/development.json": `{"modulePrefix":"my-app","port":4200}`,
	})

	calls := 0
	prefix := ConfigValue("modulePrefix")
	got := evaluate(t, TokenReplace(files, cfg, TokenReplaceOptions{
		ConfigPath: "environments/development.json",
		Files:      []string{"boot.js"},
		Patterns: []Pattern{
			{
				Match: regexp.MustCompile(`\{\{MODULE_PREFIX\}\}`),
				Replacement: func(c map[string]any) (string, error) {
					calls++
					return prefix(c)
				},
			},
			{Match: regexp.MustCompile(`\{\{CONFIG_JSON\}\}`), Replacement: ConfigJSON()},
		},
	}))

	want := map[string]string{
		"boot.js":      `boot(my-app, {"modulePrefix":"my-app","port":4200}); // my-app`,
		"untouched.js": "{{MODULE_PREFIX}}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TokenReplace mismatch (-want +got):\n%s", diff)
	}
	if calls != 1 {
		t.Errorf("replacement computed %d times, want 1", calls)
	}
}

func TestTokenReplace_ConfigNotReadWithoutMatch(t *testing.T) {
	t.Parallel()

	files := fixture(t, map[string]string{"plain.js": "nothing to see"})
	cfg := fixture(t, map[string]string{})

	got := evaluate(t, TokenReplace(files, cfg, TokenReplaceOptions{
		ConfigPath: "missing.json",
		Files:      []string{"plain.js"},
		Patterns:   []Pattern{{Match: regexp.MustCompile(`\{\{ENV\}\}`), Replacement: ConfigValue("environment")}},
	}))
	if got["plain.js"] != "nothing to see" {
		t.Errorf("plain.js = %q", got["plain.js"])
	}
}

func TestTokenReplace_Errors(t *testing.T) {
	t.Parallel()

	pattern := []Pattern{{Match: regexp.MustCompile(`@@`), Replacement: ConfigValue("absent")}}
	files := map[string]string{"a.js": "@@"}

	t.Run("missing config", func(t *testing.T) {
		t.Parallel()
		_, err := evaluateErr(t, TokenReplace(fixture(t, files), fixture(t, nil), TokenReplaceOptions{
			ConfigPath: "env.json", Files: []string{"a.js"}, Patterns: pattern,
		}))
		if err == nil {
			t.Fatal("expected error for missing config")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		_, err := evaluateErr(t, TokenReplace(fixture(t, files), fixture(t, map[string]string{"env.json": "{}"}), TokenReplaceOptions{
			ConfigPath: "env.json", Files: []string{"a.js"}, Patterns: pattern,
		}))
		if err == nil {
			t.Fatal("expected error for missing key")
		}
	})

	t.Run("missing listed file", func(t *testing.T) {
		t.Parallel()
		_, err := evaluateErr(t, TokenReplace(fixture(t, files), fixture(t, nil), TokenReplaceOptions{
			ConfigPath: "env.json", Files: []string{"gone.js"}, Patterns: pattern,
		}))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
