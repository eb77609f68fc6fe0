package tools

import "context"

// Handler runs a concrete tool. Trust checks belong to the Orchestrator; a Handler only executes.
type Handler interface {
	Name() string
	Handle(ctx context.Context, inv Invocation) (ToolResult, error)
}
