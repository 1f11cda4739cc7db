package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(CallGetIdleSeconds, nil) != nil {
		t.Fatal("Wrap(nil) must stay nil")
	}

	cause := context.DeadlineExceeded
	err := Wrap(CallGetIdleSeconds, cause)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost: %v", err)
	}
	call, ok := CallOf(err)
	if !ok || call != CallGetIdleSeconds {
		t.Fatalf("CallOf = %q, %v", call, ok)
	}

	again := Wrap(CallDeleteSchedule, fmt.Errorf("outer: %w", err))
	call, _ = CallOf(again)
	if call != CallGetIdleSeconds {
		t.Fatalf("expected original call to survive re-wrapping, got %q", call)
	}
}

func TestCallOfPlainError(t *testing.T) {
	if _, ok := CallOf(errors.New("x")); ok {
		t.Fatal("plain error must not report a call")
	}
}

func TestCallsTable(t *testing.T) {
	if len(Calls) != 9 {
		t.Fatalf("expected 9 calls, got %d", len(Calls))
	}
	seen := map[string]bool{}
	for _, c := range Calls {
		if seen[c] {
			t.Fatalf("duplicate call %s", c)
		}
		seen[c] = true
	}
}

func TestIsRemote(t *testing.T) {
	if IsRemote(nil) || IsRemote(errors.New("x")) {
		t.Fatal("only wrapped errors are remote")
	}
	if !IsRemote(fmt.Errorf("ctx: %w", Wrap(CallToggleSchedule, errors.New("x")))) {
		t.Fatal("expected wrapped error to be remote")
	}
}
