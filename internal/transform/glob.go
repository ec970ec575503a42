// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// isGlob reports whether pattern contains doublestar metacharacters.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// matchAny reports whether rel matches one of patterns.
func matchAny(patterns []string, rel string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// validatePatterns rejects malformed globs up front so the error names the
// pattern rather than the first file it was tried against.
func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func cleanRel(p string) string {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

func annotate(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}
