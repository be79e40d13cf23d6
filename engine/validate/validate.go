// Package validate runs the validation predicates attached to tasks: shell
// snippets that exit zero when the task's effect is already in place.
package validate

import (
	"context"
	"errors"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/exec"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/memo"
	"github.com/compozy/guidebook/pkg/logger"
)

// Validator decides whether a task is already satisfied. It returns
// StatusSuccess when it is and StatusError when it is not. A non-nil error
// means the predicate itself could not be evaluated.
type Validator interface {
	Validate(ctx context.Context, t *graph.Task) (core.Status, error)
}

// Func adapts a plain function to Validator.
type Func func(ctx context.Context, t *graph.Task) (core.Status, error)

func (f Func) Validate(ctx context.Context, t *graph.Task) (core.Status, error) {
	return f(ctx, t)
}

// Runner is the part of the dispatcher a validator needs.
type Runner interface {
	ShellExecToString(ctx context.Context, req exec.Request) (string, error)
}

// ShellValidator evaluates predicates as shell snippets and remembers
// successes in the run's validation cache.
type ShellValidator struct {
	runner Runner
	memos  *memo.Memos
}

func NewShellValidator(runner Runner, memos *memo.Memos) *ShellValidator {
	return &ShellValidator{runner: runner, memos: memos}
}

func (v *ShellValidator) Validate(ctx context.Context, t *graph.Task) (core.Status, error) {
	if t.Validate == "" {
		return core.StatusBlank, nil
	}
	if v.memos.Validated(t) {
		return core.StatusSuccess, nil
	}
	log := logger.FromContext(ctx)
	_, err := v.runner.ShellExecToString(ctx, exec.Request{
		TaskID:   t.ID,
		Body:     t.Validate,
		Language: "shell",
		Env:      t.Env,
	})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Debug("Validation did not pass", "task_id", t.ID, "exit_code", exitErr.Code)
			return core.StatusError, nil
		}
		return core.StatusError, core.NewValidationError(t.ID, err)
	}
	v.memos.RememberValidated(t)
	return core.StatusSuccess, nil
}
