package tools

// Invocation is the context a handler runs with.
type Invocation struct {
	Call    ToolCall
	Workdir string
}
