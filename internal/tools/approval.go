package tools

import (
	"context"
	"fmt"
	"sync"
)

// Remember is the "always allow" rule chosen at approval time. The zero value allows this call only.
type Remember struct {
	// Pattern is added to trusted commands.
	Pattern     string
	Description string
	Global      bool
	// Tool is added to session tool trust (tool name, @server or @server/tool).
	Tool string
}

func (r Remember) empty() bool { return r.Pattern == "" && r.Tool == "" }

type ApprovalDecision struct {
	ApprovalID string
	Approved   bool
	Remember   Remember
}

type ApprovalStore struct {
	mu       sync.Mutex
	waiters  map[string]chan ApprovalDecision
	decided  map[string]ApprovalDecision
	decidedN int
}

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		waiters: map[string]chan ApprovalDecision{},
		decided: map[string]ApprovalDecision{},
	}
}

// Wait blocks until approvalID is resolved or ctx is done.
func (s *ApprovalStore) Wait(ctx context.Context, approvalID string) (ApprovalDecision, error) {
	if s == nil {
		return ApprovalDecision{}, fmt.Errorf("approval store not configured")
	}
	if approvalID == "" {
		return ApprovalDecision{}, fmt.Errorf("missing approval id")
	}
	s.mu.Lock()
	if decided, ok := s.decided[approvalID]; ok {
		delete(s.decided, approvalID)
		s.decidedN = len(s.decided)
		s.mu.Unlock()
		return decided, nil
	}
	ch := make(chan ApprovalDecision, 1)
	s.waiters[approvalID] = ch
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, approvalID)
		s.mu.Unlock()
		return ApprovalDecision{}, ctx.Err()
	case decision := <-ch:
		return decision, nil
	}
}

// Resolve records a decision, buffering it if nobody is waiting yet.
func (s *ApprovalStore) Resolve(decision ApprovalDecision) bool {
	if s == nil || decision.ApprovalID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.waiters[decision.ApprovalID]; ok {
		delete(s.waiters, decision.ApprovalID)
		ch <- decision
		close(ch)
		return true
	}
	s.decided[decision.ApprovalID] = decision
	s.decidedN++
	// Best-effort bound: keep the last ~256 decisions to avoid unbounded growth.
	if s.decidedN > 256 {
		for k := range s.decided {
			delete(s.decided, k)
			break
		}
		s.decidedN = len(s.decided)
	}
	return true
}
