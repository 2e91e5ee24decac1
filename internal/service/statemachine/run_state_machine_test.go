package statemachine

import (
	"errors"
	"testing"
)

func TestRunStateMachineAllowedTransitions(t *testing.T) {
	sm := NewRunStateMachine()

	allowed := []RunTransition{
		{RunStatusStructuring, RunStatusGenerating},
		{RunStatusGenerating, RunStatusCompleted},
		{RunStatusStructuring, RunStatusError},
		{RunStatusGenerating, RunStatusError},
	}
	for _, tr := range allowed {
		if !sm.CanTransition(tr.From, tr.To) {
			t.Errorf("expected transition %s -> %s to be allowed", tr.From, tr.To)
		}
	}
}

func TestRunStateMachineRejectedTransitions(t *testing.T) {
	sm := NewRunStateMachine()

	rejected := []RunTransition{
		{RunStatusStructuring, RunStatusCompleted}, // 不允许跳过 generating
		{RunStatusCompleted, RunStatusGenerating},  // 终止态不可回退
		{RunStatusError, RunStatusGenerating},      // 无 resume-from-error
		{RunStatusCompleted, RunStatusError},
		{RunStatusGenerating, RunStatusGenerating}, // 状态不变
	}
	for _, tr := range rejected {
		if sm.CanTransition(tr.From, tr.To) {
			t.Errorf("expected transition %s -> %s to be rejected", tr.From, tr.To)
		}
	}
}

func TestRunStateMachineValidateTransitionError(t *testing.T) {
	sm := NewRunStateMachine()

	err := sm.ValidateTransition(RunStatusCompleted, RunStatusGenerating)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var invalidErr *InvalidStateTransitionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %T", err)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(RunStatusCompleted) || !IsTerminal(RunStatusError) {
		t.Error("completed and error should be terminal")
	}
	if IsTerminal(RunStatusStructuring) || IsTerminal(RunStatusGenerating) {
		t.Error("structuring and generating should not be terminal")
	}
}
