package toolperm

import (
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// Built-in tool names.
const (
	ToolFsRead      = "fs_read"
	ToolFsWrite     = "fs_write"
	ToolExecuteBash = "execute_bash"
	ToolExecuteCmd  = "execute_cmd"
	ToolUseAws      = "use_aws"
	ToolReportIssue = "report_issue"
	ToolThinking    = "thinking"
)

// BuiltinTools lists the native tools in display order.
var BuiltinTools = []string{
	ToolFsRead,
	ToolFsWrite,
	ToolExecuteBash,
	ToolExecuteCmd,
	ToolUseAws,
	ToolReportIssue,
	ToolThinking,
}

// Label texts.
const (
	LabelTrusted           = "trusted"
	LabelNotTrusted        = "not trusted"
	LabelReadOnlyCommands  = "trust read-only commands"
	LabelTrustedPrerelease = "trusted (prerelease)"
	LabelStateTrusted      = "* trusted"
	LabelStateNotTrusted   = "* not trusted"
)

// IsBuiltin reports whether name is one of BuiltinTools.
func IsBuiltin(name string) bool { return slices.Contains(BuiltinTools, name) }

// DefaultTrusted reports the built-in trust for a native tool nobody
// configured. fs_read is absent: its default lives in DefaultAgentState.
// Command tools are not trusted at this level; each command goes through
// the acceptance check instead.
func DefaultTrusted(name string) bool {
	switch name {
	case ToolReportIssue, ToolThinking:
		return true
	default:
		return false
	}
}

// DefaultLabel describes the built-in policy for a native tool.
func DefaultLabel(name string) string {
	switch name {
	case ToolReportIssue:
		return LabelTrusted
	case ToolExecuteBash, ToolExecuteCmd, ToolUseAws:
		return LabelReadOnlyCommands
	case ToolThinking:
		return LabelTrustedPrerelease
	default:
		return LabelNotTrusted
	}
}

// Label is the unstyled trust status. A leading "*" means the answer comes
// from the agent or session rather than the built-in default.
func (p *Permissions) Label(name string, origin Origin) string {
	if p.TrustAllEnabled() {
		return LabelStateTrusted
	}
	if trusted, ok := p.stateDecision(Identity{Name: name, Origin: origin}); ok {
		if trusted {
			return LabelStateTrusted
		}
		return LabelStateNotTrusted
	}
	if origin.Kind() != Native {
		return LabelNotTrusted
	}
	return DefaultLabel(name)
}

var (
	trustedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Bold(true)
	readOnlyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7AF00"))
	deniedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC0000"))
)

// DisplayLabel is Label styled for a terminal.
func (p *Permissions) DisplayLabel(name string, origin Origin) string {
	label := p.Label(name, origin)
	switch label {
	case LabelTrusted, LabelStateTrusted, LabelTrustedPrerelease:
		return trustedStyle.Render(label)
	case LabelReadOnlyCommands:
		return readOnlyStyle.Render(label)
	default:
		return deniedStyle.Render(label)
	}
}

// Known lists every tool the permissions know about: built-ins, the catalog,
// and every allow-list or override entry that names a concrete tool.
func (p *Permissions) Known() []Identity {
	seen := map[string]bool{}
	var out []Identity
	add := func(id Identity) {
		key := id.Namespaced()
		if id.Name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, id)
	}
	for _, n := range BuiltinTools {
		add(Identity{Name: n})
	}
	if p.catalog != nil {
		for _, id := range p.catalog.Tools() {
			add(id)
		}
	}
	entries := append(p.agent.AllowedTools.Sorted(), p.overrides.Allowed()...)
	entries = append(entries, p.overrides.Denied()...)
	for _, e := range entries {
		if id, ok := ParseIdentity(e); ok {
			add(id)
		}
	}
	return out
}

// Suggest returns up to three known tool names resembling name, best first.
func (p *Permissions) Suggest(name string) []string {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return nil
	}
	known := p.Known()
	keys := make([]string, 0, len(known))
	for _, id := range known {
		keys = append(keys, id.Namespaced())
	}
	results := fuzzy.Find(query, keys)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Str < results[j].Str
		}
		return results[i].Score > results[j].Score
	})
	out := make([]string, 0, 3)
	for _, r := range results {
		if r.Str == name {
			continue
		}
		out = append(out, r.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// StaticCatalog is a fixed Catalog.
type StaticCatalog struct {
	Native  []string
	Servers map[string][]string
}

func (c StaticCatalog) ServerTools(server string) ([]string, bool) {
	tools, ok := c.Servers[server]
	return tools, ok
}

func (c StaticCatalog) Tools() []Identity {
	out := make([]Identity, 0, len(c.Native))
	for _, n := range c.Native {
		out = append(out, Identity{Name: n})
	}
	servers := make([]string, 0, len(c.Servers))
	for s := range c.Servers {
		servers = append(servers, s)
	}
	sort.Strings(servers)
	for _, s := range servers {
		for _, t := range c.Servers[s] {
			out = append(out, Identity{Name: t, Origin: ServerOrigin(s)})
		}
	}
	return out
}
