package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestExecuteAllStepsSucceed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	runner := NewRunner("connect", time.Second, logger)

	var order []string
	steps := []Step{
		{ID: "first", Run: func(ctx context.Context) error { order = append(order, "first"); return nil }},
		{ID: "second", Run: func(ctx context.Context) error { order = append(order, "second"); return nil }},
	}

	execs, err := runner.Execute(context.Background(), steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Steps ran out of order: %v", order)
	}

	for _, e := range execs {
		if e.State != StepStateCompleted {
			t.Errorf("Step %s state = %s, want completed", e.ID, e.State)
		}
	}
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	runner := NewRunner("connect", time.Second, logger)

	var rolledBack []string
	boom := errors.New("boom")
	steps := []Step{
		{
			ID:       "mic",
			Run:      func(ctx context.Context) error { return nil },
			Rollback: func(ctx context.Context) { rolledBack = append(rolledBack, "mic") },
		},
		{
			ID:       "sink",
			Run:      func(ctx context.Context) error { return nil },
			Rollback: func(ctx context.Context) { rolledBack = append(rolledBack, "sink") },
		},
		{
			ID:  "socket",
			Run: func(ctx context.Context) error { return boom },
			Rollback: func(ctx context.Context) {
				t.Error("Failed step must not be rolled back")
			},
		},
	}

	execs, err := runner.Execute(context.Background(), steps)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	// Reverse order: the sink goes before the mic
	if len(rolledBack) != 2 || rolledBack[0] != "sink" || rolledBack[1] != "mic" {
		t.Errorf("Rollback order = %v, want [sink mic]", rolledBack)
	}

	if execs[0].State != StepStateRolledBack || execs[1].State != StepStateRolledBack {
		t.Error("Completed steps should be marked rolled_back")
	}
	if execs[2].State != StepStateFailed {
		t.Errorf("Failing step state = %s, want failed", execs[2].State)
	}
}

func TestExecuteTimeoutStillRollsBack(t *testing.T) {
	logger := zaptest.NewLogger(t)
	runner := NewRunner("connect", 20*time.Millisecond, logger)

	rolled := false
	steps := []Step{
		{
			ID:       "mic",
			Run:      func(ctx context.Context) error { return nil },
			Rollback: func(ctx context.Context) { rolled = true },
		},
		{
			ID: "socket",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	_, err := runner.Execute(context.Background(), steps)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !rolled {
		t.Error("Rollback must run after a timeout")
	}
}
