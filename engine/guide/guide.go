// Package guide drives a guidebook run: it alternates between asking the
// next unresolved choice and running the tasks that precede it, then runs
// the rest of the plan under a sequential side-effect barrier.
package guide

import (
	"context"
	"fmt"
	"slices"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/exec"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/memo"
	"github.com/compozy/guidebook/engine/optimize"
	"github.com/compozy/guidebook/engine/validate"
	"github.com/compozy/guidebook/engine/wizard"
	"github.com/compozy/guidebook/pkg/logger"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeStep   Mode = "step"
	ModeDryRun Mode = "dry-run"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeStep, ModeDryRun:
		return true
	}
	return false
}

// Compiler produces the raw graph for the current answers.
type Compiler interface {
	Compile(ctx context.Context, state *choices.State) (graph.Graph, error)
}

// Executor runs one task body.
type Executor interface {
	ShellExec(ctx context.Context, req exec.Request) (core.Status, error)
}

// Prompter asks the operator one question.
type Prompter interface {
	Ask(ctx context.Context, q Question) (choices.Answer, error)
}

// Pauser blocks between steps in step mode until the operator continues.
type Pauser interface {
	Pause(ctx context.Context) error
}

type Options struct {
	// Interactive allows questions; otherwise any unresolved choice fails
	// the run.
	Interactive bool
	Mode        Mode
	// Optimize disables the optimizer entirely when false.
	Optimize        bool
	OptimizeOptions optimize.Options
	// Concurrency above one presents task jobs concurrently. Side effects
	// stay ordered by the barrier. Dry runs are always concurrent.
	Concurrency int
	Verbose     bool
}

func DefaultOptions() Options {
	return Options{
		Interactive: true,
		Mode:        ModeAuto,
		Optimize:    true,
		OptimizeOptions: optimize.Options{
			Validate: true,
		},
	}
}

type Option func(*Guide)

func WithPrompter(p Prompter) Option {
	return func(g *Guide) { g.prompter = p }
}

func WithPauser(p Pauser) Option {
	return func(g *Guide) { g.pauser = p }
}

func WithPresenter(p Presenter) Option {
	return func(g *Guide) {
		if p != nil {
			g.presenter = p
		}
	}
}

func WithValidator(v validate.Validator) Option {
	return func(g *Guide) { g.validator = v }
}

type Guide struct {
	compiler  Compiler
	state     *choices.State
	memos     *memo.Memos
	executor  Executor
	validator validate.Validator
	prompter  Prompter
	pauser    Pauser
	presenter Presenter
	opts      Options
}

// New wires a guide. In dry-run mode the guide plans against scratch
// memos, so the caller's status memo is never written.
func New(
	compiler Compiler,
	state *choices.State,
	memos *memo.Memos,
	executor Executor,
	opts Options,
	options ...Option,
) *Guide {
	if state == nil {
		state = choices.New()
	}
	if memos == nil {
		memos = memo.New(0)
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.Mode == ModeDryRun {
		memos = memos.Scratch()
	}
	g := &Guide{
		compiler:  compiler,
		state:     state,
		memos:     memos,
		executor:  executor,
		presenter: NopPresenter{},
		opts:      opts,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Report summarizes a finished run.
type Report struct {
	Questions int
	Steps     int
	Success   bool
}

// Run resolves every choice and executes the resulting plan.
func (g *Guide) Run(ctx context.Context) (*Report, error) {
	log := logger.FromContext(ctx)
	report := &Report{}
	tasks, asked, err := g.resolveChoices(ctx)
	report.Questions = asked
	if err != nil {
		return report, err
	}
	report.Steps = len(tasks)
	if len(tasks) == 0 {
		g.presenter.Notice("Nothing to do")
	}
	statuses, err := g.runTasks(ctx, tasks, g.opts.Mode)
	report.Success = err == nil && allSuccess(statuses)
	if g.opts.Interactive {
		g.presenter.Summary(report.Success)
	}
	log.Info("Guidebook finished", "success", report.Success, "questions", asked, "steps", report.Steps)
	if err != nil {
		return report, fmt.Errorf("run failed: %w", err)
	}
	return report, nil
}

// Plan compiles, optimizes and flattens the guidebook for the current
// answers.
func (g *Guide) Plan(ctx context.Context, previous wizard.Wizard) (graph.Graph, wizard.Wizard, error) {
	raw, err := g.compiler.Compile(ctx, g.state)
	if err != nil {
		if core.HasCode(err, core.ErrCodeCompile) {
			return nil, nil, err
		}
		return nil, nil, core.NewCompileError(err)
	}
	optimized := raw
	if g.opts.Optimize {
		optimized, err = optimize.Optimize(ctx, raw, g.state, g.opts.OptimizeOptions, g.validator)
		if err != nil {
			return nil, nil, err
		}
	}
	w := wizard.Wizardify(optimized, g.memos, wizard.Options{Previous: previous, Choices: g.state})
	return optimized, w, nil
}

// resolveChoices loops until no choice is pending and returns the task
// steps left to run, along with how many questions were asked.
func (g *Guide) resolveChoices(ctx context.Context) ([]*wizard.Step, int, error) {
	log := logger.FromContext(ctx)
	var previous wizard.Wizard
	var lastPre []string
	asked := 0
	for iter := 0; ; iter++ {
		plan, w, err := g.Plan(ctx, previous)
		if err != nil {
			return nil, asked, err
		}
		if iter == 0 && g.opts.Interactive {
			g.presentTitle(plan)
		}
		first := w.FirstPendingChoice()
		if first < 0 {
			return w.PendingTasks(-1), asked, nil
		}
		if pre := w.PendingTasks(first); len(pre) > 0 {
			keys := stepKeys(pre)
			if slices.Equal(keys, lastPre) {
				return nil, asked, core.NewNoProgressError(w[first].Key)
			}
			lastPre = keys
			log.Debug("Running tasks preceding choice", "choice", w[first].Key, "steps", len(pre))
			if err := g.runPreChoice(ctx, pre); err != nil {
				return nil, asked, err
			}
			previous = w
			continue
		}
		lastPre = nil
		if !g.opts.Interactive || g.prompter == nil {
			return nil, asked, core.NewUnresolvedError(w.PendingChoices())
		}
		step := w[first]
		answer, err := g.prompter.Ask(ctx, g.question(step, asked))
		if err != nil {
			return nil, asked, core.NewPromptError(step.Key, err)
		}
		if err := g.state.Record(step.Choice.ID, answer); err != nil {
			return nil, asked, core.NewPromptError(step.Key, err)
		}
		log.Debug("Recorded answer", "choice", step.Key, "answer", answer.String())
		asked++
		previous = w
	}
}

// runPreChoice runs the tasks a pending choice depends on. In a dry run
// they are only checked, then assumed done in the scratch memo so planning
// can move on to the choice.
func (g *Guide) runPreChoice(ctx context.Context, steps []*wizard.Step) error {
	mode := ModeAuto
	if g.opts.Mode == ModeDryRun {
		mode = ModeDryRun
	}
	_, err := g.runTasks(ctx, steps, mode)
	if err != nil {
		return err
	}
	if mode == ModeDryRun {
		for _, step := range steps {
			for _, t := range step.Blocks() {
				g.memos.StatusMemo.Set(t.ID, core.StatusSuccess)
			}
		}
	}
	return nil
}

func (g *Guide) presentTitle(plan graph.Graph) {
	type described interface {
		Title() string
		Description() string
	}
	title, description := graph.ExtractTitle(plan), graph.ExtractDescription(plan)
	if d, ok := g.compiler.(described); ok && title == "" {
		title, description = d.Title(), d.Description()
	}
	if title != "" || description != "" {
		g.presenter.Title(title, description)
	}
}

func stepKeys(steps []*wizard.Step) []string {
	keys := make([]string, 0, len(steps))
	for _, s := range steps {
		keys = append(keys, s.Key)
	}
	return keys
}

func allSuccess(statuses []core.Status) bool {
	for _, s := range statuses {
		if !s.IsSuccess() {
			return false
		}
	}
	return true
}
