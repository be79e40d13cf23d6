package guide

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/exec"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/wizard"
	"github.com/compozy/guidebook/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// job is one entry of the ordered job list: a task step or, in step mode,
// a pause between two task steps. index is the job's barrier slot.
type job struct {
	index int
	step  *wizard.Step
}

func (j job) isPause() bool { return j.step == nil }

type runner struct {
	g       *Guide
	mode    Mode
	barrier *barrier
	aborted atomic.Bool
}

// runTasks executes task steps in order and returns the status of each.
// Job i performs side effects only after job i-1 is terminal. A failing
// step does not stop later steps; all failures are joined in the error.
func (g *Guide) runTasks(ctx context.Context, steps []*wizard.Step, mode Mode) ([]core.Status, error) {
	if len(steps) == 0 {
		return nil, nil
	}
	jobs := buildJobs(steps, mode)
	r := &runner{g: g, mode: mode, barrier: newBarrier(len(jobs))}
	r.barrier.markDone(0, core.StatusSuccess)

	statuses := make([]core.Status, len(steps))
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var eg errgroup.Group
	if limit := g.concurrency(mode); limit > 0 {
		eg.SetLimit(limit)
	}
	stepIdx := 0
	for _, j := range jobs {
		j := j
		if j.isPause() {
			eg.Go(func() error {
				record(r.pause(ctx, j))
				return nil
			})
			continue
		}
		slot := stepIdx
		stepIdx++
		eg.Go(func() error {
			status, err := r.runStep(ctx, j)
			statuses[slot] = status
			record(err)
			return nil
		})
	}
	_ = eg.Wait()
	if err := r.barrier.waitAll(ctx); err != nil {
		record(err)
	}
	return statuses, errors.Join(errs...)
}

// concurrency returns how many jobs may be in flight. Dry runs present
// every job at once; otherwise jobs run one by one unless configured.
func (g *Guide) concurrency(mode Mode) int {
	if mode == ModeDryRun {
		return -1
	}
	if g.opts.Concurrency > 1 {
		return g.opts.Concurrency
	}
	return 1
}

func buildJobs(steps []*wizard.Step, mode Mode) []job {
	var jobs []job
	for i, step := range steps {
		if mode == ModeStep && i > 0 {
			jobs = append(jobs, job{index: len(jobs) + 1})
		}
		jobs = append(jobs, job{index: len(jobs) + 1, step: step})
	}
	return jobs
}

func (r *runner) pause(ctx context.Context, j job) error {
	status := core.StatusSuccess
	defer func() { r.barrier.markDone(j.index, status) }()
	if _, err := r.barrier.wait(ctx, j.index-1); err != nil {
		status = core.StatusError
		r.aborted.Store(true)
		return err
	}
	if r.aborted.Load() || r.g.pauser == nil {
		return nil
	}
	r.g.presenter.Event(Event{Kind: StepPaused})
	if err := r.g.pauser.Pause(ctx); err != nil {
		status = core.StatusError
		r.aborted.Store(true)
		return fmt.Errorf("pause interrupted: %w", err)
	}
	return nil
}

// runStep runs the blocks of one task step sequentially in document order.
// Once a block fails, the rest are reported as errors without dispatch.
func (r *runner) runStep(ctx context.Context, j job) (status core.Status, err error) {
	step := j.step
	defer func() {
		r.barrier.markDone(j.index, status)
		r.g.presenter.Event(Event{Kind: StepFinished, Step: step.Name, Status: status, Err: err})
	}()
	r.g.presenter.Event(Event{Kind: StepStarted, Step: step.Name})
	var errs []error
	status = core.StatusSuccess
	for _, t := range step.Blocks() {
		if len(errs) > 0 || r.aborted.Load() {
			r.emit(step, t, TaskAborted, nil)
			status = core.StatusError
			continue
		}
		s, blockErr := r.runBlock(ctx, j, t)
		if blockErr != nil {
			errs = append(errs, blockErr)
		}
		switch {
		case s == core.StatusError:
			status = core.StatusError
		case s == core.StatusBlank && status == core.StatusSuccess:
			status = core.StatusBlank
		}
	}
	return status, errors.Join(errs...)
}

func (r *runner) runBlock(ctx context.Context, j job, t *graph.Task) (core.Status, error) {
	g := r.g
	log := logger.FromContext(ctx).With("task_id", t.ID)
	if g.memos.StatusOf(t) == core.StatusSuccess {
		r.emit(j.step, t, TaskSkipped, nil)
		return core.StatusSuccess, nil
	}
	if t.Validate != "" && g.validator != nil {
		status, err := g.validator.Validate(ctx, t)
		switch {
		case err == nil && status == core.StatusSuccess:
			if r.mode != ModeDryRun {
				g.memos.StatusMemo.Set(t.ID, core.StatusSuccess)
			}
			r.emit(j.step, t, TaskReady, nil)
			return core.StatusSuccess, nil
		case r.mode == ModeDryRun:
			r.emit(j.step, t, TaskNotReady, err)
			return core.StatusError, nil
		case err != nil:
			log.Debug("Validation failed, running task body", "error", err)
		}
	}
	if r.mode == ModeDryRun {
		r.emit(j.step, t, TaskPlanned, nil)
		return core.StatusBlank, nil
	}
	if _, err := r.barrier.wait(ctx, j.index-1); err != nil {
		r.emit(j.step, t, TaskAborted, err)
		return core.StatusError, core.NewExecutionError(t.ID, err)
	}
	if g.memos.StatusOf(t) == core.StatusSuccess {
		r.emit(j.step, t, TaskSkipped, nil)
		return core.StatusSuccess, nil
	}
	r.emit(j.step, t, TaskRunning, nil)
	status, err := g.executor.ShellExec(ctx, exec.Request{
		TaskID:   t.ID,
		Body:     t.Body,
		Language: t.Language,
		Exec:     t.Exec,
		Async:    t.Async,
		Env:      t.Env,
	})
	if err == nil && status != core.StatusSuccess {
		err = fmt.Errorf("finished with status %s", status)
	}
	if err != nil {
		log.Warn("Task failed", "error", err)
		r.emit(j.step, t, TaskFailed, err)
		g.memos.StatusMemo.Set(t.ID, core.StatusError)
		return core.StatusError, core.NewExecutionError(t.ID, err)
	}
	g.memos.StatusMemo.Set(t.ID, core.StatusSuccess)
	r.emit(j.step, t, TaskSucceeded, nil)
	return core.StatusSuccess, nil
}

func (r *runner) emit(step *wizard.Step, t *graph.Task, kind EventKind, err error) {
	r.g.presenter.Event(Event{
		Kind:  kind,
		Step:  step.Name,
		Task:  t,
		Quiet: IsQuiet(t, r.g.opts.Verbose),
		Err:   err,
	})
}
