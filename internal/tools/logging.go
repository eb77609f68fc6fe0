package tools

import (
	"io"
	"strings"
	"sync"
	"time"

	"echo-guard/internal/logger"
)

// DefaultToolsLogPath is where tool call logs go by default.
const DefaultToolsLogPath = "logs/tools.log"

var (
	toolsLog           = logger.Named("tools")
	toolsLogConfigured bool
	toolsLogMu         sync.Mutex
	toolsLogCloser     io.Closer
	toolsLogPath       string
)

// SetupToolsLog configures the dedicated tool call log and returns the file closer and path.
// An empty logPath means DefaultToolsLogPath.
// Only the first call takes effect.
func SetupToolsLog(logPath string) (io.Closer, string, error) {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()

	if toolsLogConfigured {
		return toolsLogCloser, toolsLogPath, nil
	}
	if logPath == "" {
		logPath = DefaultToolsLogPath
	}

	entry, closer, resolved, err := logger.SetupComponentFile("tools", logPath)
	toolsLogConfigured = true
	toolsLogPath = resolved
	if err != nil {
		return nil, resolved, err
	}
	if entry != nil {
		toolsLog = entry
	}
	toolsLogCloser = closer
	return closer, resolved, nil
}

// CloseToolsLog closes the tools log file if one was opened.
func CloseToolsLog() {
	toolsLogMu.Lock()
	defer toolsLogMu.Unlock()
	if toolsLogCloser != nil {
		_ = toolsLogCloser.Close()
		toolsLogCloser = nil
	}
}

// Without SetupToolsLog entries go to the root logger and no file is created.
func logToolRequest(call ToolCall, workdir string) {
	wd := workdir
	if strings.TrimSpace(wd) == "" {
		wd = "."
	}
	toolsLog.Infof("tool_call id=%s name=%s origin=%s workdir=%s command=%s",
		call.ID, call.Name, call.Origin, wd, sanitizeForLog(call.Command))
}

func logToolResult(call ToolCall, result ToolResult, elapsed time.Duration) {
	toolsLog.Infof("tool_result id=%s name=%s status=%s duration=%s error=%s",
		call.ID, call.Name, result.Status, elapsed.Round(time.Millisecond), sanitizeForLog(result.Error))
}

func sanitizeForLog(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "(empty)"
	}
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, "\r", `\r`)
	return text
}
