package trust

import (
	"fmt"
	"strings"
)

// PatternOption is a candidate pattern offered to the user after they
// approve a command, from most to least specific.
type PatternOption struct {
	Pattern     string
	Description string
}

// SuggestPatterns builds the "always allow" choices for command:
//
//	npm run build  -> "npm run build", "npm run*", "npm*"
//	ls -la         -> "ls -la", "ls*"
//	pwd            -> "pwd"
//
// The two-word prefix is only offered when there are at least three words
// and the second one is not a flag. Options that would not pass
// ValidatePattern are dropped. Commands containing "|" get no options: a
// pattern is only ever matched against a single pipe segment.
func SuggestPatterns(command string) []PatternOption {
	command = strings.TrimSpace(command)
	if command == "" || strings.Contains(command, "|") {
		return nil
	}
	words := strings.Fields(command)

	candidates := []PatternOption{{Pattern: command, Description: "Trust this exact command only"}}
	if len(words) >= 3 && !strings.HasPrefix(words[1], "-") {
		prefix := words[0] + " " + words[1]
		candidates = append(candidates, PatternOption{
			Pattern:     prefix + "*",
			Description: fmt.Sprintf("Trust all '%s' commands", prefix),
		})
	}
	if len(words) >= 2 {
		candidates = append(candidates, PatternOption{
			Pattern:     words[0] + "*",
			Description: fmt.Sprintf("Trust all '%s' commands", words[0]),
		})
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]PatternOption, 0, len(candidates))
	for _, opt := range candidates {
		if _, dup := seen[opt.Pattern]; dup {
			continue
		}
		seen[opt.Pattern] = struct{}{}
		if ValidatePattern(opt.Pattern) != nil {
			continue
		}
		out = append(out, opt)
	}
	return out
}
