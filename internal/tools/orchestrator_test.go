package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echo-guard/internal/audit"
	"echo-guard/internal/policy"
	"echo-guard/internal/toolperm"
	"echo-guard/internal/trust"
)

type stubHandler struct {
	name   string
	called bool
	err    error
}

func (h *stubHandler) Name() string { return h.name }
func (h *stubHandler) Handle(context.Context, Invocation) (ToolResult, error) {
	h.called = true
	if h.err != nil {
		return ToolResult{}, h.err
	}
	return ToolResult{Output: "ok"}, nil
}

type memRecorder struct {
	entries []audit.Entry
}

func (r *memRecorder) Record(e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

type memCommands struct {
	added []string
	err   error
}

func (m *memCommands) Add(pattern, _ string, scope trust.Scope) error {
	if m.err != nil {
		return m.err
	}
	m.added = append(m.added, scope.String()+":"+pattern)
	return nil
}

type fixture struct {
	orch      *Orchestrator
	approvals *ApprovalStore
	perms     *toolperm.Permissions
	commands  *memCommands
	recorder  *memRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	perms := toolperm.New(toolperm.DefaultAgentState(), nil, nil)
	commands := &memCommands{}
	recorder := &memRecorder{}
	approvals := NewApprovalStore()
	orch := NewOrchestrator(OrchestratorOptions{
		Decider:   policy.New(trust.NewCombined(), perms),
		Approvals: approvals,
		Commands:  commands,
		Tools:     perms,
		Recorder:  recorder,
		SessionID: "s1",
	})
	return &fixture{orch: orch, approvals: approvals, perms: perms, commands: commands, recorder: recorder}
}

// approveOn resolves decision when a requires_approval event arrives.
func approveOn(store *ApprovalStore, decision ApprovalDecision, seen *[]ToolEvent) func(ToolEvent) {
	return func(ev ToolEvent) {
		*seen = append(*seen, ev)
		if ev.Result.Status == StatusRequiresApproval {
			decision.ApprovalID = ev.Result.ApprovalID
			store.Resolve(decision)
		}
	}
}

func TestTrustedToolRunsWithoutApproval(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: toolperm.ToolFsRead}

	var events []ToolEvent
	res := f.orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "1"}}, h, func(ev ToolEvent) {
		events = append(events, ev)
	})

	assert.True(t, h.called)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, toolperm.ToolFsRead, res.Name)
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventCompleted, events[1].Type)

	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, "execute", f.recorder.entries[0].Verdict)
	assert.Equal(t, "s1", f.recorder.entries[0].Session)
}

func TestDeniedApprovalSkipsHandler(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: toolperm.ToolFsWrite}

	var events []ToolEvent
	res := f.orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "2"}}, h,
		approveOn(f.approvals, ApprovalDecision{Approved: false}, &events))

	assert.False(t, h.called)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ErrApprovalDenied.Error(), res.Error)

	var sawDecision bool
	for _, ev := range events {
		if ev.Decision != nil {
			sawDecision = true
			assert.Equal(t, policy.OfferTrust, ev.Decision.Verdict)
			assert.Equal(t, []string{toolperm.ToolFsWrite}, ev.Decision.Tools)
		}
	}
	assert.True(t, sawDecision)

	require.Len(t, f.recorder.entries, 1)
	require.NotNil(t, f.recorder.entries[0].Approved)
	assert.False(t, *f.recorder.entries[0].Approved)
}

func TestRememberToolTrustsForSession(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: "get_page"}
	call := ToolCall{ID: "3", Origin: toolperm.ServerOrigin("fetch")}

	var events []ToolEvent
	res := f.orch.Run(context.Background(), Invocation{Call: call}, h,
		approveOn(f.approvals, ApprovalDecision{Approved: true, Remember: Remember{Tool: "@fetch"}}, &events))

	assert.True(t, h.called)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, f.perms.IsTrusted("other_tool", toolperm.ServerOrigin("fetch")))
	assert.Equal(t, "@fetch", f.recorder.entries[0].Remembered)

	// Second call runs without asking.
	h2 := &stubHandler{name: "get_page"}
	var second []ToolEvent
	f.orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "4", Origin: toolperm.ServerOrigin("fetch")}}, h2, func(ev ToolEvent) {
		second = append(second, ev)
	})
	assert.True(t, h2.called)
	assert.Len(t, second, 2)
}

func TestRememberCommandPattern(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: toolperm.ToolExecuteBash}
	call := ToolCall{ID: "5", Command: "npm install"}

	var events []ToolEvent
	decision := ApprovalDecision{Approved: true, Remember: Remember{Pattern: "npm*", Global: true}}
	res := f.orch.Run(context.Background(), Invocation{Call: call}, h, approveOn(f.approvals, decision, &events))

	assert.True(t, h.called)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"global:npm*"}, f.commands.added)
	assert.Equal(t, audit.KindCommand, f.recorder.entries[0].Kind)
}

func TestDangerousCommandIsNeverRemembered(t *testing.T) {
	f := newFixture(t)
	f.perms.TrustAll()
	h := &stubHandler{name: toolperm.ToolExecuteBash}
	call := ToolCall{ID: "6", Command: "rm -rf build"}

	var events []ToolEvent
	decision := ApprovalDecision{Approved: true, Remember: Remember{Pattern: "rm*"}}
	res := f.orch.Run(context.Background(), Invocation{Call: call}, h, approveOn(f.approvals, decision, &events))

	assert.True(t, h.called, "approved once")
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, f.commands.added, "prompt verdicts never persist")
}

func TestRememberFailureStillRuns(t *testing.T) {
	f := newFixture(t)
	f.commands.err = &trust.ValidationError{Pattern: "*", Reason: trust.ErrTooBroad}
	h := &stubHandler{name: toolperm.ToolExecuteBash}

	var events []ToolEvent
	decision := ApprovalDecision{Approved: true, Remember: Remember{Pattern: "*"}}
	res := f.orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "7", Command: "make"}}, h,
		approveOn(f.approvals, decision, &events))

	assert.True(t, h.called)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, f.recorder.entries[0].Remembered)
}

func TestApprovalWaitHonorsContext(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: toolperm.ToolFsWrite}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := f.orch.Run(ctx, Invocation{Call: ToolCall{ID: "8"}}, h, nil)

	assert.False(t, h.called)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestMissingApprovalStoreFailsClosed(t *testing.T) {
	orch := NewOrchestrator(OrchestratorOptions{Decider: policy.New(nil, nil)})
	h := &stubHandler{name: toolperm.ToolFsWrite}

	res := orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "9"}}, h, nil)
	assert.False(t, h.called)
	assert.Contains(t, res.Error, "approval store not configured")
}

func TestMissingDeciderFailsClosed(t *testing.T) {
	orch := NewOrchestrator(OrchestratorOptions{})
	h := &stubHandler{name: toolperm.ToolFsRead}

	res := orch.Run(context.Background(), Invocation{}, h, nil)
	assert.False(t, h.called)
	assert.Equal(t, StatusError, res.Status)
	assert.NotEmpty(t, res.ID, "id generated")
}

func TestHandlerErrorIsNormalized(t *testing.T) {
	f := newFixture(t)
	h := &stubHandler{name: toolperm.ToolFsRead, err: errors.New("boom")}

	res := f.orch.Run(context.Background(), Invocation{Call: ToolCall{ID: "10"}}, h, nil)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "boom", res.Error)
}
