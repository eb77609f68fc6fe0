package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalStoreResolveBeforeWait(t *testing.T) {
	s := NewApprovalStore()
	require.True(t, s.Resolve(ApprovalDecision{ApprovalID: "a", Approved: true, Remember: Remember{Tool: "fs_write"}}))

	got, err := s.Wait(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.Equal(t, "fs_write", got.Remember.Tool)
}

func TestApprovalStoreWaitThenResolve(t *testing.T) {
	s := NewApprovalStore()
	done := make(chan ApprovalDecision, 1)
	go func() {
		d, _ := s.Wait(context.Background(), "b")
		done <- d
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, waiting := s.waiters["b"]
		return waiting
	}, time.Second, time.Millisecond)

	s.Resolve(ApprovalDecision{ApprovalID: "b", Approved: false})
	select {
	case d := <-done:
		assert.False(t, d.Approved)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestApprovalStoreErrors(t *testing.T) {
	var nilStore *ApprovalStore
	_, err := nilStore.Wait(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, nilStore.Resolve(ApprovalDecision{ApprovalID: "x"}))

	s := NewApprovalStore()
	_, err = s.Wait(context.Background(), "")
	require.Error(t, err)
	assert.False(t, s.Resolve(ApprovalDecision{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Wait(ctx, "c")
	require.ErrorIs(t, err, context.Canceled)
	s.mu.Lock()
	assert.Empty(t, s.waiters)
	s.mu.Unlock()
}
