package amm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// journal records how to undo each side effect an operation has applied.
type journal struct {
	steps []journalStep
}

type journalStep struct {
	name string
	undo func(ctx context.Context) error
}

func (j *journal) record(name string, undo func(ctx context.Context) error) {
	j.steps = append(j.steps, journalStep{name: name, undo: undo})
}

// rollback undoes recorded steps newest first and returns cause, joined with
// any undo failures.
func (j *journal) rollback(ctx context.Context, logger *zap.Logger, cause error) error {
	ctx = context.WithoutCancel(ctx)

	errs := []error{cause}
	for i := len(j.steps) - 1; i >= 0; i-- {
		step := j.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error("rollback step failed", zap.String("step", step.name), zap.Error(err), zap.NamedError("cause", cause))
			errs = append(errs, fmt.Errorf("rollback %s: %w", step.name, err))
		}
	}
	j.steps = nil

	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}
