package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"echo-guard/internal/audit"
	"echo-guard/internal/policy"
	"echo-guard/internal/trust"
)

// Decider rules on a tool call.
type Decider interface {
	Tool(call policy.Call) policy.Decision
}

// CommandTruster persists "always allow" command patterns.
type CommandTruster interface {
	Add(pattern, description string, scope trust.Scope) error
}

// ToolTruster records session tool trust.
type ToolTruster interface {
	Trust(names ...string)
}

// Recorder records every decision.
type Recorder interface {
	Record(e audit.Entry) error
}

// ErrApprovalDenied means the user rejected the call.
var ErrApprovalDenied = errors.New("approval denied")

type Orchestrator struct {
	decider   Decider
	approvals *ApprovalStore
	commands  CommandTruster
	tools     ToolTruster
	recorder  Recorder
	session   string
}

type OrchestratorOptions struct {
	Decider   Decider
	Approvals *ApprovalStore
	Commands  CommandTruster
	Tools     ToolTruster
	Recorder  Recorder
	// SessionID is written to audit entries.
	SessionID string
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		decider:   opts.Decider,
		approvals: opts.Approvals,
		commands:  opts.Commands,
		tools:     opts.Tools,
		recorder:  opts.Recorder,
		session:   opts.SessionID,
	}
}

// Run checks trust, waits for approval when needed, then hands off to the handler.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation, handler Handler, emit func(ToolEvent)) ToolResult {
	if inv.Call.ID == "" {
		inv.Call.ID = uuid.NewString()
	}
	if inv.Call.Name == "" {
		inv.Call.Name = handler.Name()
	}
	if emit == nil {
		emit = func(ToolEvent) {}
	}
	start := time.Now()
	logToolRequest(inv.Call, inv.Workdir)

	emit(ToolEvent{
		Type:   EventStarted,
		Result: ToolResult{ID: inv.Call.ID, Name: inv.Call.Name, Status: StatusStarted, Command: inv.Call.Command},
	})

	if err := o.gate(ctx, inv, emit); err != nil {
		result := ToolResult{
			ID:      inv.Call.ID,
			Name:    inv.Call.Name,
			Status:  StatusError,
			Error:   err.Error(),
			Command: inv.Call.Command,
		}
		emit(ToolEvent{Type: EventCompleted, Result: result})
		logToolResult(inv.Call, result, time.Since(start))
		return result
	}

	result, err := handler.Handle(ctx, inv)
	result = normalizeResult(result, err, inv)

	emit(ToolEvent{
		Type:   EventCompleted,
		Result: result,
	})
	logToolResult(inv.Call, result, time.Since(start))
	return result
}

func normalizeResult(result ToolResult, err error, inv Invocation) ToolResult {
	result.ID = inv.Call.ID
	result.Name = inv.Call.Name
	if result.Command == "" {
		result.Command = inv.Call.Command
	}

	if err != nil && result.Error == "" {
		result.Error = err.Error()
	}
	if result.Status == "" {
		if result.Error != "" {
			result.Status = StatusError
		} else {
			result.Status = StatusCompleted
		}
	}
	return result
}

// gate returns nil when the call may run.
func (o *Orchestrator) gate(ctx context.Context, inv Invocation, emit func(ToolEvent)) error {
	if o == nil || o.decider == nil {
		// Fail closed: with no decider every call is denied.
		return errors.New("no trust policy configured")
	}
	call := inv.Call
	decision := o.decider.Tool(call.policyCall())
	entry := o.auditEntry(call, decision)

	if !decision.RequiresApproval() {
		o.record(entry)
		return nil
	}
	if o.approvals == nil {
		o.record(entry)
		return fmt.Errorf("approval required but approval store not configured: %s", decision.Reason)
	}

	approvalID := call.ID
	emit(ToolEvent{
		Type: EventUpdated,
		Result: ToolResult{
			ID:             call.ID,
			Name:           call.Name,
			Status:         StatusRequiresApproval,
			Command:        call.Command,
			ApprovalID:     approvalID,
			ApprovalReason: decision.Reason,
			Output:         "approval_required: " + decision.Reason,
		},
		Decision: &decision,
	})

	answer, err := o.approvals.Wait(ctx, approvalID)
	if err != nil {
		o.record(entry)
		return err
	}
	entry.Approved = &answer.Approved
	if !answer.Approved {
		o.record(entry)
		return ErrApprovalDenied
	}
	if decision.Verdict == policy.OfferTrust && !answer.Remember.empty() {
		entry.Remembered = o.remember(call, answer.Remember)
	}
	o.record(entry)

	emit(ToolEvent{
		Type: EventUpdated,
		Result: ToolResult{
			ID:         call.ID,
			Name:       call.Name,
			Status:     StatusApproved,
			Command:    call.Command,
			ApprovalID: approvalID,
		},
	})
	return nil
}

// remember writes the user's "always allow" back to the trust stores. Failures are only logged; the call still proceeds.
func (o *Orchestrator) remember(call ToolCall, r Remember) string {
	var saved string
	if r.Pattern != "" && o.commands != nil {
		if err := o.commands.Add(r.Pattern, r.Description, trust.ScopeFor(r.Global)); err != nil {
			var perr *trust.PersistError
			if !errors.As(err, &perr) {
				toolsLog.WithField("id", call.ID).Warnf("trusted command not saved: %v", err)
				return ""
			}
			toolsLog.WithField("id", call.ID).Warnf("trusted command kept for this session only: %v", err)
		}
		saved = r.Pattern
	}
	if r.Tool != "" && o.tools != nil {
		o.tools.Trust(r.Tool)
		saved = r.Tool
	}
	return saved
}

func (o *Orchestrator) auditEntry(call ToolCall, d policy.Decision) audit.Entry {
	kind := audit.KindTool
	if policy.IsShellCall(call.Name, call.Origin) {
		kind = audit.KindCommand
	}
	return audit.Entry{
		Session: o.session,
		CallID:  call.ID,
		Kind:    kind,
		Tool:    call.Name,
		Origin:  call.Origin.String(),
		Command: call.Command,
		Verdict: d.Verdict.String(),
		Step:    string(d.Step),
		Reason:  d.Reason,
	}
}

func (o *Orchestrator) record(e audit.Entry) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(e); err != nil {
		toolsLog.WithField("id", e.CallID).Warnf("audit record failed: %v", err)
	}
}
