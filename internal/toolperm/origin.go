package toolperm

import "strings"

// OriginKind is the closed set of places a tool can come from.
type OriginKind int

const (
	// Native tools ship with the assistant.
	Native OriginKind = iota
	// RemoteServer tools are exposed by a named tool server.
	RemoteServer
)

// Origin identifies where a tool comes from. The zero value is Native.
type Origin struct {
	kind   OriginKind
	server string
}

// NativeOrigin returns the origin of built-in tools.
func NativeOrigin() Origin { return Origin{kind: Native} }

// ServerOrigin returns the origin of tools exposed by server.
func ServerOrigin(server string) Origin {
	return Origin{kind: RemoteServer, server: server}
}

func (o Origin) Kind() OriginKind { return o.kind }

// Server returns the server name for RemoteServer origins.
func (o Origin) Server() (string, bool) {
	if o.kind == RemoteServer {
		return o.server, true
	}
	return "", false
}

func (o Origin) String() string {
	switch o.kind {
	case RemoteServer:
		return "@" + o.server
	default:
		return "native"
	}
}

// Identity is a tool name together with its origin.
type Identity struct {
	Name   string
	Origin Origin
}

// Namespaced returns "@server/tool" for remote tools and the bare name for
// native ones.
func (id Identity) Namespaced() string {
	switch id.Origin.kind {
	case RemoteServer:
		return ServerKey(id.Origin.server) + "/" + id.Name
	default:
		return id.Name
	}
}

// ServerKey is the allow-list entry that trusts every tool of server.
func ServerKey(server string) string { return "@" + server }

// ParseIdentity reads "@server/tool" or a bare tool name. A bare "@server"
// has no tool name and is reported with ok=false.
func ParseIdentity(s string) (Identity, bool) {
	if !strings.HasPrefix(s, "@") {
		return Identity{Name: s}, s != ""
	}
	server, tool, found := strings.Cut(strings.TrimPrefix(s, "@"), "/")
	if !found || server == "" || tool == "" {
		return Identity{}, false
	}
	return Identity{Name: tool, Origin: ServerOrigin(server)}, true
}

// keys lists the allow-list entries that can decide id, most specific first.
// The server-wide key is only included when covered is true. A bare built-in
// name refers to the native tool and never decides a remote one.
func (id Identity) keys(covered bool) []string {
	switch id.Origin.kind {
	case RemoteServer:
		keys := []string{id.Namespaced()}
		if !IsBuiltin(id.Name) {
			keys = append(keys, id.Name)
		}
		if covered {
			keys = append(keys, ServerKey(id.Origin.server))
		}
		return keys
	default:
		return []string{id.Name}
	}
}
