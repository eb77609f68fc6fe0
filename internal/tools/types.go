package tools

import (
	"echo-guard/internal/policy"
	"echo-guard/internal/toolperm"
)

// ToolCall is a tool call awaiting execution.
type ToolCall struct {
	ID     string
	Name   string
	Origin toolperm.Origin
	// Command is only meaningful for execute_bash / execute_cmd.
	Command string
}

func (c ToolCall) policyCall() policy.Call {
	return policy.Call{Name: c.Name, Origin: c.Origin, Command: c.Command}
}

// Status values.
const (
	StatusStarted          = "started"
	StatusRequiresApproval = "requires_approval"
	StatusApproved         = "approved"
	StatusCompleted        = "completed"
	StatusError            = "error"
)

type ToolResult struct {
	ID             string
	Name           string
	Status         string // started|requires_approval|approved|completed|error
	Output         string
	Error          string
	Command        string
	ApprovalID     string
	ApprovalReason string
}

// Event types.
const (
	EventStarted   = "item.started"
	EventUpdated   = "item.updated"
	EventCompleted = "item.completed"
)

type ToolEvent struct {
	Type   string // item.started|item.updated|item.completed
	Result ToolResult
	// Decision is set only on requires_approval events so the UI can render trust options.
	Decision *policy.Decision
}
