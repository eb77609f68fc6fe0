package toolperm

import (
	"sort"
	"strings"
)

// Set is a set of allow-list entries: tool names, "@server" or
// "@server/tool".
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the entries in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// AgentState is the tool trust persisted with an agent.
type AgentState struct {
	AllowedTools  Set
	TrustAllTools bool
}

// DefaultAgentState trusts only fs_read. It is the only place fs_read is
// trusted by default, so removing it from a saved allow-list sticks.
func DefaultAgentState() AgentState {
	return AgentState{AllowedTools: NewSet("fs_read")}
}

// Clone returns a deep copy.
func (a AgentState) Clone() AgentState {
	return AgentState{AllowedTools: a.AllowedTools.clone(), TrustAllTools: a.TrustAllTools}
}

// ResetTool removes name from the allow-list and clears TrustAllTools. ok is
// false when neither was set.
func (a AgentState) ResetTool(name string) (AgentState, bool) {
	out := a.Clone()
	if !out.AllowedTools.Has(name) && !out.TrustAllTools {
		return out, false
	}
	delete(out.AllowedTools, name)
	out.TrustAllTools = false
	return out, true
}

// Overrides are the session-only changes layered over an AgentState. They
// are never written anywhere unless merged with Apply and saved explicitly.
type Overrides struct {
	allowed  Set
	denied   Set
	trustAll bool
}

// NewOverrides returns an empty override layer.
func NewOverrides() *Overrides {
	return &Overrides{allowed: Set{}, denied: Set{}}
}

// Trust marks name trusted for this session.
func (o *Overrides) Trust(name string) {
	delete(o.denied, name)
	o.allowed[name] = struct{}{}
}

// Untrust marks name untrusted for this session, even if the agent trusts it.
func (o *Overrides) Untrust(name string) {
	delete(o.allowed, name)
	o.denied[name] = struct{}{}
}

// SetTrustAll trusts every tool for this session.
func (o *Overrides) SetTrustAll() { o.trustAll = true }

func (o *Overrides) TrustAll() bool { return o.trustAll }

// Has reports whether name carries an override.
func (o *Overrides) Has(name string) bool {
	return o.allowed.Has(name) || o.denied.Has(name)
}

// Empty reports whether the layer changes nothing.
func (o *Overrides) Empty() bool {
	return len(o.allowed) == 0 && len(o.denied) == 0 && !o.trustAll
}

// Reset drops every override.
func (o *Overrides) Reset() {
	o.allowed = Set{}
	o.denied = Set{}
	o.trustAll = false
}

// ResetTool drops the override for name and the session trust-all flag.
func (o *Overrides) ResetTool(name string) {
	delete(o.allowed, name)
	delete(o.denied, name)
	o.trustAll = false
}

// Allowed returns the session-trusted entries.
func (o *Overrides) Allowed() []string { return o.allowed.Sorted() }

// Denied returns the session-untrusted entries.
func (o *Overrides) Denied() []string { return o.denied.Sorted() }

// lookup returns the override for key, if any.
func (o *Overrides) lookup(key string) (trusted bool, ok bool) {
	if o.allowed.Has(key) {
		return true, true
	}
	if o.denied.Has(key) {
		return false, true
	}
	return false, false
}

// Apply merges the overrides into agent and returns the result. agent is
// not modified. A denied entry also drops the agent entries it overrides in
// a session: "@server" drops every "@server/tool", and a tool name drops
// "@server/name" unless it names a built-in tool.
func (o *Overrides) Apply(agent AgentState) AgentState {
	out := agent.Clone()
	if out.AllowedTools == nil {
		out.AllowedTools = Set{}
	}
	for d := range o.denied {
		for e := range out.AllowedTools {
			if revokes(d, e) {
				delete(out.AllowedTools, e)
			}
		}
	}
	for n := range o.allowed {
		out.AllowedTools[n] = struct{}{}
	}
	out.TrustAllTools = out.TrustAllTools || o.trustAll
	return out
}

// revokes reports whether denying denied in a session outranks the
// allow-list entry.
func revokes(denied, entry string) bool {
	if denied == entry {
		return true
	}
	if !strings.HasPrefix(entry, "@") {
		return false
	}
	id, ok := ParseIdentity(entry)
	if !ok {
		return false
	}
	if strings.HasPrefix(denied, "@") {
		return ServerKey(id.Origin.server) == denied
	}
	return id.Name == denied && !IsBuiltin(denied)
}
