package trust

import (
	"strings"

	"echo-guard/internal/danger"
	"echo-guard/internal/glob"
)

// ValidatePattern checks a pattern before it may be stored. A nil return
// means the pattern is non-blank, narrower than "*", free of dangerous
// literals and compiles.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return &ValidationError{Pattern: pattern, Reason: ErrEmptyPattern}
	}
	if pattern == "*" {
		return &ValidationError{Pattern: pattern, Reason: ErrTooBroad}
	}
	if m, ok := danger.Classify(pattern); ok {
		return &ValidationError{Pattern: pattern, Reason: ErrDangerousPattern, Match: &m}
	}
	if _, err := glob.Compile(pattern); err != nil {
		return &ValidationError{Pattern: pattern, Reason: ErrInvalidPattern, Cause: err}
	}
	return nil
}
