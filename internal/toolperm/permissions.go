// Package toolperm decides which tools may run without confirmation.
//
// Trust comes from three layers, consulted in order:
//
//   - session overrides (Overrides), which can both grant and revoke;
//   - the agent's persisted allow-list (AgentState);
//   - the built-in default for a native tool name.
//
// A trust-all flag in the agent or the session short-circuits all three.
// Remote tools are matched against "@server/tool", their bare name unless it
// is a built-in one, and "@server", most specific first. Built-in defaults
// never apply to remote tools.
package toolperm

import (
	"fmt"
	"slices"

	"echo-guard/internal/logger"
)

// Catalog exposes the tools that currently exist. It is consulted on every
// decision so a server that gains tools later is still covered by "@server".
type Catalog interface {
	// ServerTools returns the tools server currently exposes. ok is false
	// when the server is unknown.
	ServerTools(server string) (tools []string, ok bool)
	// Tools lists every tool currently available.
	Tools() []Identity
}

// AgentStore persists an agent's trust state.
type AgentStore interface {
	SaveAgentTrust(agent string, state AgentState) error
}

// NotFoundError is returned when resetting a tool that has no override.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool '%s' has no permission override to reset", e.Name)
}

// Permissions combines one agent's persisted state with one session's
// overrides. It is owned by a single session and not safe for concurrent use.
type Permissions struct {
	agent     AgentState
	overrides *Overrides
	catalog   Catalog
	log       *logger.LogEntry
}

// New returns the permissions view for agent. overrides may be nil for a
// fresh session. catalog may be nil, in which case "@server" covers every
// tool of that server.
func New(agent AgentState, overrides *Overrides, catalog Catalog) *Permissions {
	if overrides == nil {
		overrides = NewOverrides()
	}
	if agent.AllowedTools == nil {
		agent.AllowedTools = Set{}
	}
	return &Permissions{
		agent:     agent.Clone(),
		overrides: overrides,
		catalog:   catalog,
		log:       logger.Named("toolperm"),
	}
}

// Agent returns a copy of the persisted layer.
func (p *Permissions) Agent() AgentState { return p.agent.Clone() }

// Overrides returns the session layer.
func (p *Permissions) Overrides() *Overrides { return p.overrides }

// Effective returns the agent state with the session overrides merged in.
// A session denial of "@server/tool" under a server-wide "@server" entry
// replaces that entry with the server's other tools from the catalog, or
// drops it when there is no catalog.
func (p *Permissions) Effective() AgentState {
	out := p.overrides.Apply(p.agent)
	for _, d := range p.overrides.Denied() {
		id, ok := ParseIdentity(d)
		if !ok {
			continue
		}
		server, remote := id.Origin.Server()
		key := ServerKey(server)
		if !remote || !out.AllowedTools.Has(key) {
			continue
		}
		delete(out.AllowedTools, key)
		if p.catalog == nil {
			continue
		}
		tools, _ := p.catalog.ServerTools(server)
		for _, t := range tools {
			entry := key + "/" + t
			if t != id.Name && !p.overrides.denied.Has(entry) {
				out.AllowedTools[entry] = struct{}{}
			}
		}
	}
	return out
}

// Trust marks names trusted for this session.
func (p *Permissions) Trust(names ...string) {
	for _, n := range names {
		p.overrides.Trust(n)
	}
	p.log.WithField("tools", names).Debug("trusted tools for session")
}

// Untrust marks names untrusted for this session.
func (p *Permissions) Untrust(names ...string) {
	for _, n := range names {
		p.overrides.Untrust(n)
	}
	p.log.WithField("tools", names).Debug("untrusted tools for session")
}

// TrustAll trusts every tool for this session.
func (p *Permissions) TrustAll() {
	p.overrides.SetTrustAll()
	p.log.Debug("trusted all tools for session")
}

// TrustAllEnabled reports the effective trust-all flag.
func (p *Permissions) TrustAllEnabled() bool {
	return p.agent.TrustAllTools || p.overrides.TrustAll()
}

// Reset drops every session override, restoring the agent defaults.
func (p *Permissions) Reset() {
	p.overrides.Reset()
	p.log.Debug("reset tool permissions to agent defaults")
}

// ResetTool drops the session override for name together with a session
// trust-all. It fails when there was nothing to reset.
func (p *Permissions) ResetTool(name string) error {
	if !p.overrides.Has(name) && !p.overrides.TrustAll() {
		return &NotFoundError{Name: name}
	}
	p.overrides.ResetTool(name)
	p.log.WithField("tool", name).Debug("reset tool permission")
	return nil
}

// IsTrusted reports whether the tool may run without confirmation.
func (p *Permissions) IsTrusted(name string, origin Origin) bool {
	if p.TrustAllEnabled() {
		return true
	}
	if trusted, ok := p.stateDecision(Identity{Name: name, Origin: origin}); ok {
		return trusted
	}
	return origin.Kind() == Native && DefaultTrusted(name)
}

// stateDecision consults the overrides and then the agent allow-list. ok is
// false when neither says anything about the tool.
func (p *Permissions) stateDecision(id Identity) (trusted bool, ok bool) {
	keys := id.keys(p.covered(id))
	for _, k := range keys {
		if trusted, ok := p.overrides.lookup(k); ok {
			return trusted, true
		}
	}
	for _, k := range keys {
		if p.agent.AllowedTools.Has(k) {
			return true, true
		}
	}
	return false, false
}

// covered reports whether "@server" may speak for id.
func (p *Permissions) covered(id Identity) bool {
	server, ok := id.Origin.Server()
	if !ok {
		return false
	}
	if p.catalog == nil {
		return true
	}
	tools, known := p.catalog.ServerTools(server)
	if !known {
		return false
	}
	return slices.Contains(tools, id.Name)
}

// Save merges the session overrides into the agent state and persists it.
// The merge stays applied when the write fails.
func (p *Permissions) Save(store AgentStore, agent string) error {
	p.agent = p.Effective()
	p.overrides.Reset()
	if err := store.SaveAgentTrust(agent, p.agent.Clone()); err != nil {
		return fmt.Errorf("save tool permissions for agent %s: %w", agent, err)
	}
	p.log.WithField("agent", agent).Info("saved tool permissions")
	return nil
}
