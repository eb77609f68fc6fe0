package tools

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"echo-guard/internal/logger"
	"echo-guard/internal/toolperm"
)

func withBufferedToolsLogger(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(logger.PlainFormatter{})
	l.SetReportCaller(false)

	toolsLogMu.Lock()
	prevLog := toolsLog
	prevConfigured := toolsLogConfigured
	prevCloser := toolsLogCloser
	prevPath := toolsLogPath

	toolsLog = logrus.NewEntry(l).WithField("component", "tools")
	toolsLogConfigured = true
	toolsLogCloser = nil
	toolsLogPath = "(test)"
	toolsLogMu.Unlock()

	t.Cleanup(func() {
		toolsLogMu.Lock()
		toolsLog = prevLog
		toolsLogConfigured = prevConfigured
		toolsLogCloser = prevCloser
		toolsLogPath = prevPath
		toolsLogMu.Unlock()
	})

	return buf
}

func TestToolsLogIncludesCallAndResult(t *testing.T) {
	buf := withBufferedToolsLogger(t)

	call := ToolCall{ID: "1", Name: "execute_bash", Origin: toolperm.NativeOrigin(), Command: "echo hi\nls"}
	logToolRequest(call, "")
	logToolResult(call, ToolResult{ID: "1", Status: StatusError, Error: "boom\nfail"}, 120*time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "tool_call id=1 name=execute_bash origin=native workdir=. command=echo hi\\nls") {
		t.Fatalf("missing tool_call log, got:\n%s", out)
	}
	if !strings.Contains(out, "tool_result id=1 name=execute_bash status=error duration=120ms error=boom\\nfail") {
		t.Fatalf("missing tool_result log, got:\n%s", out)
	}
	if !strings.Contains(out, "[tools]") {
		t.Fatalf("missing component, got:\n%s", out)
	}
}

func TestToolsLogRemoteOrigin(t *testing.T) {
	buf := withBufferedToolsLogger(t)

	logToolRequest(ToolCall{ID: "2", Name: "get_page", Origin: toolperm.ServerOrigin("fetch")}, "/work")
	if !strings.Contains(buf.String(), "origin=@fetch workdir=/work command=(empty)") {
		t.Fatalf("unexpected log:\n%s", buf.String())
	}
}
