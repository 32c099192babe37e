package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending    StepState = "pending"
	StepStateRunning    StepState = "running"
	StepStateCompleted  StepState = "completed"
	StepStateFailed     StepState = "failed"
	StepStateRolledBack StepState = "rolled_back"
)

// Step is a single stage of a resource acquisition sequence. Run acquires
// the resource; Rollback releases it. Rollback is only invoked for steps
// whose Run completed, in reverse order.
type Step struct {
	ID       string
	Run      func(ctx context.Context) error
	Rollback func(ctx context.Context)
}

// StepExecution records the outcome of a step
type StepExecution struct {
	ID          string     `json:"id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Runner executes steps sequentially and rolls completed steps back when a
// later step fails, so a partially built resource set never leaks.
type Runner struct {
	name    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner for a named sequence
func NewRunner(name string, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		name:    name,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs the steps in order. On failure it rolls back every completed
// step in reverse order and returns the failing step's error. The returned
// executions describe each step's final state.
func (r *Runner) Execute(ctx context.Context, steps []Step) ([]StepExecution, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	execs := make([]StepExecution, len(steps))
	for i, step := range steps {
		execs[i] = StepExecution{ID: step.ID, State: StepStatePending}
	}

	for i, step := range steps {
		now := time.Now()
		execs[i].State = StepStateRunning
		execs[i].StartedAt = &now

		err := step.Run(ctx)
		done := time.Now()
		execs[i].CompletedAt = &done

		if err != nil {
			execs[i].State = StepStateFailed
			execs[i].Error = err.Error()
			r.logger.Error("Step failed",
				zap.String("sequence", r.name),
				zap.String("step", step.ID),
				zap.Error(err))

			r.rollback(ctx, steps, execs, i-1)
			return execs, fmt.Errorf("%s: step %s: %w", r.name, step.ID, err)
		}

		execs[i].State = StepStateCompleted
		r.logger.Debug("Step completed",
			zap.String("sequence", r.name),
			zap.String("step", step.ID))
	}

	return execs, nil
}

// rollback releases resources for steps [0, last] in reverse order. A fresh
// background context is used so rollback still runs after a timeout.
func (r *Runner) rollback(ctx context.Context, steps []Step, execs []StepExecution, last int) {
	rbCtx := ctx
	if ctx.Err() != nil {
		rbCtx = context.Background()
	}

	for i := last; i >= 0; i-- {
		if steps[i].Rollback == nil {
			continue
		}
		r.logger.Info("Rolling back step",
			zap.String("sequence", r.name),
			zap.String("step", steps[i].ID))
		steps[i].Rollback(rbCtx)
		execs[i].State = StepStateRolledBack
	}
}
