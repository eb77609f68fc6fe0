// Package acceptance decides whether a shell command may run without asking
// the user first.
package acceptance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/shlex"

	"echo-guard/internal/danger"
	"echo-guard/internal/trust"
)

// ReadonlyCommands may run unattended when every pipe segment starts with one
// of them. dir and type are the Windows equivalents of ls and cat.
var ReadonlyCommands = []string{"ls", "cat", "echo", "pwd", "which", "head", "tail", "find", "grep", "dir", "type"}

// Step names the rule that settled a decision.
type Step string

const (
	StepTokenize  Step = "tokenize"
	StepDangerous Step = "dangerous_pattern"
	StepTrusted   Step = "trusted_pattern"
	StepFusedPipe Step = "fused_pipe"
	StepSegment   Step = "segment"
	StepReadonly  Step = "readonly"
)

// Result explains a decision.
type Result struct {
	Required bool
	Step     Step
	Reason   string
	// Danger is set for StepDangerous.
	Danger *danger.Match
	// Pattern is the trusted pattern that matched for StepTrusted.
	Pattern string
}

// RequiresAcceptance reports whether command must be confirmed by the user.
// trusted may be nil.
func RequiresAcceptance(command string, trusted trust.Matcher) bool {
	return Explain(command, trusted).Required
}

type patternMatcher interface {
	MatchingPattern(command string) (string, bool)
}

// Explain runs the decision and reports which rule settled it. The rules
// apply in a fixed order and the first one that decides wins:
//
//  1. the command must tokenize;
//  2. a dangerous literal in the raw string always requires acceptance;
//  3. a trusted pattern lets the command run;
//  4. a "|" fused to other text requires acceptance;
//  5. every pipe segment must start with a readonly command, and find may
//     not carry -exec or -delete.
//
// A bare " | " between segments is left to rules 4 and 5 rather than vetoed
// at rule 2, so "cat a.txt | grep x" runs while "ls | xargs rm" does not.
// Trusted patterns never cover a pipeline as a whole: each segment is matched
// on its own and the rest must still be read-only, so "git*" lets
// "git log | grep x" run but not "git log | sh".
func Explain(command string, trusted trust.Matcher) Result {
	words, err := shlex.Split(command)
	if err != nil {
		return Result{Required: true, Step: StepTokenize, Reason: fmt.Sprintf("could not tokenize command: %v", err)}
	}

	piped := false
	if m, ok := danger.Classify(command); ok {
		if !isBarePipe(m) {
			return Result{
				Required: true,
				Step:     StepDangerous,
				Reason:   fmt.Sprintf("contains %s '%s'", m.Category.Reason(), m.Pattern),
				Danger:   &m,
			}
		}
		piped = true
	}

	if !piped {
		if res, ok := trustedResult(command, trusted); ok {
			return res
		}
	}

	segments, fused := splitPipeline(words)
	if fused != "" {
		return Result{Required: true, Step: StepFusedPipe, Reason: fmt.Sprintf("ambiguous pipe in '%s'", fused)}
	}
	if len(segments) == 0 {
		return Result{Required: true, Step: StepSegment, Reason: "empty command"}
	}
	var trustedSeg *Result
	for _, seg := range segments {
		if piped {
			if res, ok := trustedResult(strings.Join(seg, " "), trusted); ok {
				if trustedSeg == nil {
					trustedSeg = &res
				}
				continue
			}
		}
		if res, ok := checkSegment(seg); ok {
			return res
		}
	}
	if trustedSeg != nil {
		return *trustedSeg
	}
	return Result{Step: StepReadonly, Reason: "every command is read-only"}
}

// trustedResult reports whether trusted covers command, naming the matching
// pattern when the matcher can tell.
func trustedResult(command string, trusted trust.Matcher) (Result, bool) {
	if trusted == nil || !trusted.IsTrusted(command) {
		return Result{}, false
	}
	res := Result{Step: StepTrusted, Reason: "matches a trusted command pattern"}
	if pm, ok := trusted.(patternMatcher); ok {
		if p, ok := pm.MatchingPattern(command); ok {
			res.Pattern = p
			res.Reason = fmt.Sprintf("matches trusted pattern '%s'", p)
		}
	}
	return res, true
}

func isBarePipe(m danger.Match) bool {
	return m.Category == danger.ShellControl && m.Pattern == "|"
}

// splitPipeline splits words on standalone "|" tokens. fused is the first
// word that contains "|" without being one.
func splitPipeline(words []string) (segments [][]string, fused string) {
	var current []string
	for _, w := range words {
		switch {
		case w == "|":
			if len(current) > 0 {
				segments = append(segments, current)
			}
			current = nil
		case strings.Contains(w, "|"):
			return nil, w
		default:
			current = append(current, w)
		}
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments, ""
}

func checkSegment(seg []string) (Result, bool) {
	if len(seg) == 0 {
		return Result{Required: true, Step: StepSegment, Reason: "empty pipe segment"}, true
	}
	head := seg[0]
	if head == "find" {
		for _, w := range seg {
			if strings.Contains(w, "-exec") || strings.Contains(w, "-delete") {
				return Result{Required: true, Step: StepSegment, Reason: fmt.Sprintf("find with '%s' can modify files", w)}, true
			}
		}
	}
	if !slices.Contains(ReadonlyCommands, head) {
		return Result{Required: true, Step: StepSegment, Reason: fmt.Sprintf("'%s' is not a read-only command", head)}, true
	}
	return Result{}, false
}
