// Package policy turns trust state into a verdict for one proposed action.
package policy

import (
	"fmt"

	"github.com/google/shlex"

	"echo-guard/internal/acceptance"
	"echo-guard/internal/danger"
	"echo-guard/internal/logger"
	"echo-guard/internal/toolperm"
	"echo-guard/internal/trust"
)

// Verdict is what the caller should do next.
type Verdict int

const (
	// Execute runs the action without asking.
	Execute Verdict = iota
	// Prompt asks the user once. Nothing may be persisted from the answer.
	Prompt
	// OfferTrust asks the user and offers to remember the answer.
	OfferTrust
)

func (v Verdict) String() string {
	switch v {
	case Execute:
		return "execute"
	case Prompt:
		return "prompt"
	case OfferTrust:
		return "offer_trust"
	default:
		return "unknown"
	}
}

// Decision is the verdict with enough detail to render the prompt.
type Decision struct {
	Verdict Verdict
	Reason  string
	// Step is set for shell commands.
	Step acceptance.Step
	// Danger is the dangerous literal that forced a prompt, if any.
	Danger *danger.Match
	// Patterns are the trusted-command choices offered with OfferTrust.
	Patterns []trust.PatternOption
	// Tools are the allow-list entries offered with OfferTrust for a tool.
	Tools []string
}

// RequiresApproval reports whether the user must be asked.
func (d Decision) RequiresApproval() bool { return d.Verdict != Execute }

// ToolTrust answers tool-level trust.
type ToolTrust interface {
	IsTrusted(name string, origin toolperm.Origin) bool
}

// Evaluator holds the trust sources for one session.
type Evaluator struct {
	commands trust.Matcher
	tools    ToolTrust
	log      *logger.LogEntry
}

// New returns an evaluator. commands may be nil, in which case no command is
// trusted by pattern. tools may be nil, in which case the default agent state
// applies.
func New(commands trust.Matcher, tools ToolTrust) *Evaluator {
	if tools == nil {
		tools = toolperm.New(toolperm.DefaultAgentState(), nil, nil)
	}
	return &Evaluator{commands: commands, tools: tools, log: logger.Named("policy")}
}

// Command decides on a shell command outside of any tool-level trust.
func (e *Evaluator) Command(command string) Decision {
	res := acceptance.Explain(command, e.commands)
	d := Decision{Reason: res.Reason, Step: res.Step, Danger: res.Danger}
	switch {
	case !res.Required:
		d.Verdict = Execute
	case res.Step == acceptance.StepDangerous || res.Step == acceptance.StepTokenize:
		d.Verdict = Prompt
	default:
		d.Patterns = trust.SuggestPatterns(command)
		if len(d.Patterns) == 0 {
			d.Verdict = Prompt
		} else {
			d.Verdict = OfferTrust
		}
	}
	e.log.WithFields(logger.Fields{
		"command": command,
		"verdict": d.Verdict.String(),
		"step":    string(d.Step),
	}).Debug("command decision")
	return d
}

// Call is a proposed tool invocation. Command is the shell command for the
// command tools and empty otherwise.
type Call struct {
	Name    string
	Origin  toolperm.Origin
	Command string
}

// IsCommandTool reports whether name runs shell commands.
func IsCommandTool(name string) bool {
	return name == toolperm.ToolExecuteBash || name == toolperm.ToolExecuteCmd
}

// IsShellCall reports whether the call goes to the native shell tool. A
// remote tool that happens to share the name is an ordinary tool.
func IsShellCall(name string, origin toolperm.Origin) bool {
	return IsCommandTool(name) && origin.Kind() == toolperm.Native
}

// Tool decides on a tool invocation. A trusted command tool still prompts
// for a dangerous or untokenizable command.
func (e *Evaluator) Tool(call Call) Decision {
	trusted := e.tools.IsTrusted(call.Name, call.Origin)
	shell := IsShellCall(call.Name, call.Origin)
	var d Decision
	switch {
	case shell && trusted:
		d = trustedShell(call)
	case shell:
		d = e.Command(call.Command)
	case trusted:
		d = Decision{Verdict: Execute, Reason: fmt.Sprintf("tool %s is trusted", call.Name)}
	default:
		d = Decision{
			Verdict: OfferTrust,
			Reason:  fmt.Sprintf("tool %s is not trusted", call.Name),
			Tools:   toolOptions(call),
		}
	}
	e.log.WithFields(logger.Fields{
		"tool":    call.Name,
		"origin":  call.Origin.String(),
		"verdict": d.Verdict.String(),
	}).Debug("tool decision")
	return d
}

// trustedShell lets a trusted shell tool run anything that tokenizes and
// carries no dangerous literal.
func trustedShell(call Call) Decision {
	if _, err := shlex.Split(call.Command); err != nil {
		return Decision{
			Verdict: Prompt,
			Step:    acceptance.StepTokenize,
			Reason:  fmt.Sprintf("could not tokenize command: %v", err),
		}
	}
	if m, ok := danger.Classify(call.Command); ok {
		return Decision{
			Verdict: Prompt,
			Step:    acceptance.StepDangerous,
			Danger:  &m,
			Reason:  fmt.Sprintf("contains %s '%s'", m.Category.Reason(), m.Pattern),
		}
	}
	return Decision{Verdict: Execute, Reason: fmt.Sprintf("tool %s is trusted", call.Name)}
}

// toolOptions lists the allow-list entries a user can pick for call, most
// specific first.
func toolOptions(call Call) []string {
	if server, ok := call.Origin.Server(); ok {
		id := toolperm.Identity{Name: call.Name, Origin: call.Origin}
		return []string{id.Namespaced(), toolperm.ServerKey(server)}
	}
	return []string{call.Name}
}
