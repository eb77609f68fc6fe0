// Package glob matches trusted-command patterns against command strings.
//
// A pattern is turned into a regular expression by replacing every "*" with
// ".*" and every "?" with ".", then anchoring it. Nothing else is escaped, so
// legacy patterns that relied on regex metacharacters keep matching the way
// they always did.
package glob

import (
	"regexp"
	"strings"
)

// Translate returns the anchored regular expression source for pattern.
func Translate(pattern string) string {
	expr := strings.ReplaceAll(pattern, "*", ".*")
	expr = strings.ReplaceAll(expr, "?", ".")
	return "^" + expr + "$"
}

// Compile translates and compiles pattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(Translate(pattern))
}

// Match reports whether candidate matches pattern in full. A pattern that
// does not compile only matches itself.
func Match(pattern, candidate string) bool {
	if pattern == candidate {
		return true
	}
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(candidate)
}
