// Package danger scans raw shell command strings for literal substrings that
// must never run without a human looking at them first.
//
// Matching is plain, case-sensitive substring containment. The lists are
// checked in priority order so that a command carrying both a destructive and
// a control-flow substring is reported with the more severe category.
package danger

import "strings"

// Category classifies why a pattern is considered dangerous.
type Category int

const (
	// Destructive patterns delete data, wipe disks or escalate privileges.
	Destructive Category = iota
	// ShellControl patterns chain, substitute or redirect commands.
	ShellControl
	// IoRedirection patterns rewire standard streams.
	IoRedirection
)

func (c Category) String() string {
	switch c {
	case Destructive:
		return "destructive"
	case ShellControl:
		return "shell_control"
	case IoRedirection:
		return "io_redirection"
	default:
		return "unknown"
	}
}

// Reason is the human-readable phrase used in rejection messages.
func (c Category) Reason() string {
	switch c {
	case Destructive:
		return "destructive command"
	case ShellControl:
		return "shell control pattern"
	case IoRedirection:
		return "I/O redirection pattern"
	default:
		return "dangerous pattern"
	}
}

// Match is the first dangerous literal found in a command.
type Match struct {
	Pattern  string
	Category Category
}

// DestructivePatterns are checked first.
var DestructivePatterns = []string{
	"rm -rf",
	"sudo rm",
	"format",
	"mkfs",
	"dd if=",
	":(){ :|:& };:",
	"> /dev/",
	"chmod 777",
	"chown root",
	"su -",
	"sudo su",
	"del /",
	"rmdir /s",
}

// ShellControlPatterns are checked second. ">" is listed before ">>" and
// shadows it; both stay for documentation of intent.
var ShellControlPatterns = []string{
	"<(",
	"$(",
	"`",
	">",
	">>",
	"&&",
	"||",
	"&",
	";",
	"|",
}

// IoRedirectionPatterns are checked last. Every entry also contains a
// ShellControl literal, so in practice these only surface if the earlier list
// changes.
var IoRedirectionPatterns = []string{
	"> /dev/null",
	"2>&1",
	"&>",
}

var ordered = []struct {
	category Category
	patterns []string
}{
	{Destructive, DestructivePatterns},
	{ShellControl, ShellControlPatterns},
	{IoRedirection, IoRedirectionPatterns},
}

// Classify returns the first dangerous literal contained in command.
func Classify(command string) (Match, bool) {
	for _, group := range ordered {
		for _, p := range group.patterns {
			if strings.Contains(command, p) {
				return Match{Pattern: p, Category: group.category}, true
			}
		}
	}
	return Match{}, false
}

// IsDangerous reports whether Classify finds anything.
func IsDangerous(command string) bool {
	_, ok := Classify(command)
	return ok
}
