package trust

import (
	"echo-guard/internal/glob"
)

// TrustedCommand is a glob pattern the user approved to run without
// per-invocation confirmation.
type TrustedCommand struct {
	// Command is matched against the full command string, or against each
	// segment of a pipeline, e.g. "npm *", "git status", "git restore *".
	Command string `json:"command"`
	// Description is omitted from the file when nil.
	Description *string `json:"description,omitempty"`
}

// DescriptionText returns the description or "".
func (c TrustedCommand) DescriptionText() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// Config is the persisted list of trusted commands for one scope.
type Config struct {
	TrustedCommands []TrustedCommand `json:"trusted_commands"`
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := Config{TrustedCommands: make([]TrustedCommand, 0, len(c.TrustedCommands))}
	for _, cmd := range c.TrustedCommands {
		if cmd.Description != nil {
			d := *cmd.Description
			cmd.Description = &d
		}
		out.TrustedCommands = append(out.TrustedCommands, cmd)
	}
	return out
}

func (c Config) index(pattern string) int {
	for i, cmd := range c.TrustedCommands {
		if cmd.Command == pattern {
			return i
		}
	}
	return -1
}

// Matcher is anything that can answer whether a command is explicitly trusted.
type Matcher interface {
	IsTrusted(command string) bool
}

// Combined is the read-only merged view of the global and profile scopes.
type Combined struct {
	commands []TrustedCommand
}

// NewCombined merges configs in order. Later entries whose literal command
// already appeared are dropped from the view.
func NewCombined(configs ...Config) *Combined {
	seen := make(map[string]struct{})
	out := &Combined{}
	for _, cfg := range configs {
		for _, cmd := range cfg.TrustedCommands {
			if _, dup := seen[cmd.Command]; dup {
				continue
			}
			seen[cmd.Command] = struct{}{}
			out.commands = append(out.commands, cmd)
		}
	}
	return out
}

// Commands returns a copy of the merged entries.
func (c *Combined) Commands() []TrustedCommand {
	if c == nil {
		return nil
	}
	return append([]TrustedCommand(nil), c.commands...)
}

func (c *Combined) Len() int {
	if c == nil {
		return 0
	}
	return len(c.commands)
}

// IsTrusted reports whether any pattern matches command.
func (c *Combined) IsTrusted(command string) bool {
	_, ok := c.MatchingPattern(command)
	return ok
}

// MatchingPattern returns the first pattern that matches command.
func (c *Combined) MatchingPattern(command string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, cmd := range c.commands {
		if glob.Match(cmd.Command, command) {
			return cmd.Command, true
		}
	}
	return "", false
}
