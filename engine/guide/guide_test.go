package guide

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/exec"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/memo"
	"github.com/compozy/guidebook/engine/validate"
)

type staticCompiler struct {
	g   graph.Graph
	err error
}

func (c staticCompiler) Compile(context.Context, *choices.State) (graph.Graph, error) {
	return c.g, c.err
}

type recordingExecutor struct {
	mu     sync.Mutex
	bodies []string
	envs   []map[string]string
	delay  func(body string) time.Duration
	fail   map[string]bool
}

func (e *recordingExecutor) ShellExec(_ context.Context, req exec.Request) (core.Status, error) {
	if e.delay != nil {
		time.Sleep(e.delay(req.Body))
	}
	e.mu.Lock()
	e.bodies = append(e.bodies, req.Body)
	e.envs = append(e.envs, req.Env)
	e.mu.Unlock()
	if e.fail[req.Body] {
		return core.StatusError, &exec.ExitError{Command: req.Body, Code: 1}
	}
	return core.StatusSuccess, nil
}

func (e *recordingExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

type scriptedPrompter struct {
	answers   []string
	questions []Question
}

func (p *scriptedPrompter) Ask(_ context.Context, q Question) (choices.Answer, error) {
	p.questions = append(p.questions, q)
	if len(p.answers) == 0 {
		return choices.Answer{}, errors.New("no more answers")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return q.Answer(answer, nil), nil
}

type countingPauser struct{ n atomic.Int32 }

func (p *countingPauser) Pause(context.Context) error {
	p.n.Add(1)
	return nil
}

type recordingPresenter struct {
	NopPresenter
	mu      sync.Mutex
	events  []Event
	summary *bool
}

func (p *recordingPresenter) Event(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPresenter) Summary(success bool) {
	p.summary = &success
}

func (p *recordingPresenter) kinds(kind EventKind) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func shellTask(id, body string) *graph.Task {
	return &graph.Task{ID: id, Body: body, Language: "shell"}
}

func pickGuidebook() graph.Graph {
	return graph.NewSequence(
		shellTask("a", "echo A"),
		graph.NewChoice("pick", "Pick one",
			graph.Tile{Title: "x", Graph: shellTask("x", "echo X")},
			graph.Tile{Title: "y", Graph: shellTask("y", "echo Y")},
		),
		shellTask("done", "echo done"),
	)
}

func options(mode Mode, interactive bool) Options {
	opts := DefaultOptions()
	opts.Mode = mode
	opts.Interactive = interactive
	return opts
}

func TestGuide_Run(t *testing.T) {
	t.Run("Should run tasks around an interactively answered choice", func(t *testing.T) {
		executor := &recordingExecutor{}
		prompter := &scriptedPrompter{answers: []string{"x"}}
		presenter := &recordingPresenter{}
		state := choices.New()
		g := New(staticCompiler{g: pickGuidebook()}, state, memo.New(0), executor,
			options(ModeAuto, true), WithPrompter(prompter), WithPresenter(presenter))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"echo A", "echo X", "echo done"}, executor.calls())
		assert.Equal(t, 1, report.Questions)
		assert.True(t, report.Success)
		require.Len(t, prompter.questions, 1)
		assert.Equal(t, "pick", prompter.questions[0].ChoiceID)
		answer, ok := state.Get("pick")
		require.True(t, ok)
		assert.Equal(t, "x", answer.Value)
		require.NotNil(t, presenter.summary)
		assert.True(t, *presenter.summary)
	})

	t.Run("Should run a fully answered guidebook without questions", func(t *testing.T) {
		executor := &recordingExecutor{}
		state := choices.FromValues(map[string]string{"pick": "y"})
		g := New(staticCompiler{g: pickGuidebook()}, state, memo.New(0), executor, options(ModeAuto, false))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"echo A", "echo Y", "echo done"}, executor.calls())
		assert.Zero(t, report.Questions)
		assert.True(t, report.Success)
	})

	t.Run("Should fail with the unresolved count when not interactive", func(t *testing.T) {
		executor := &recordingExecutor{}
		g := New(staticCompiler{g: pickGuidebook()}, choices.New(), memo.New(0), executor, options(ModeAuto, false))

		_, err := g.Run(context.Background())
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeUnresolved))
		assert.Contains(t, err.Error(), "1 unresolved question")
		assert.Equal(t, []string{"echo A"}, executor.calls())
	})

	t.Run("Should skip tasks memoized as successful", func(t *testing.T) {
		executor := &recordingExecutor{}
		memos := memo.New(0)
		memos.StatusMemo.Set("a", core.StatusSuccess)
		memos.StatusMemo.Set("done", core.StatusSuccess)
		state := choices.FromValues(map[string]string{"pick": "x"})
		g := New(staticCompiler{g: pickGuidebook()}, state, memos, executor, options(ModeAuto, false))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"echo X"}, executor.calls())
		assert.True(t, report.Success)
		assert.Equal(t, core.StatusSuccess, memos.StatusMemo.Get("x"))
	})

	t.Run("Should keep running later steps after a failure", func(t *testing.T) {
		executor := &recordingExecutor{fail: map[string]bool{"echo Y": true}}
		memos := memo.New(0)
		state := choices.FromValues(map[string]string{"pick": "y"})
		g := New(staticCompiler{g: pickGuidebook()}, state, memos, executor, options(ModeAuto, false))

		report, err := g.Run(context.Background())
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeExecution))
		assert.False(t, report.Success)
		assert.Equal(t, []string{"echo A", "echo Y", "echo done"}, executor.calls())
		assert.Equal(t, core.StatusSuccess, memos.StatusMemo.Get("done"))
	})

	t.Run("Should abort resolution when a pre-choice task fails", func(t *testing.T) {
		executor := &recordingExecutor{fail: map[string]bool{"echo A": true}}
		prompter := &scriptedPrompter{answers: []string{"x"}}
		g := New(staticCompiler{g: pickGuidebook()}, choices.New(), memo.New(0), executor,
			options(ModeAuto, true), WithPrompter(prompter))

		_, err := g.Run(context.Background())
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeExecution))
		assert.Empty(t, prompter.questions)
	})

	t.Run("Should surface compile errors before running anything", func(t *testing.T) {
		executor := &recordingExecutor{}
		g := New(staticCompiler{err: errors.New("bad source")}, nil, nil, executor, options(ModeAuto, false))

		_, err := g.Run(context.Background())
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
		assert.Empty(t, executor.calls())
	})

	t.Run("Should wrap prompt failures", func(t *testing.T) {
		executor := &recordingExecutor{}
		prompter := &scriptedPrompter{}
		g := New(staticCompiler{g: pickGuidebook()}, choices.New(), memo.New(0), executor,
			options(ModeAuto, true), WithPrompter(prompter))

		_, err := g.Run(context.Background())
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodePrompt))
	})
}

func TestGuide_DryRun(t *testing.T) {
	t.Run("Should report ready without dispatching the body", func(t *testing.T) {
		executor := &recordingExecutor{}
		presenter := &recordingPresenter{}
		task := &graph.Task{ID: "install", Body: "apt install tool", Language: "shell", Validate: "which tool"}
		v := validate.Func(func(context.Context, *graph.Task) (core.Status, error) {
			return core.StatusSuccess, nil
		})
		opts := options(ModeDryRun, false)
		opts.OptimizeOptions.Validate = false
		memos := memo.New(0)
		g := New(staticCompiler{g: graph.NewSequence(task)}, choices.New(), memos, executor, opts,
			WithValidator(v), WithPresenter(presenter))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Success)
		assert.Empty(t, executor.calls())
		assert.Len(t, presenter.kinds(TaskReady), 1)
		assert.Equal(t, core.StatusBlank, memos.StatusMemo.Get("install"))
	})

	t.Run("Should report not ready without failing", func(t *testing.T) {
		executor := &recordingExecutor{}
		presenter := &recordingPresenter{}
		task := &graph.Task{ID: "install", Body: "apt install tool", Language: "shell", Validate: "which tool"}
		v := validate.Func(func(context.Context, *graph.Task) (core.Status, error) {
			return core.StatusBlank, errors.New("probe crashed")
		})
		g := New(staticCompiler{g: graph.NewSequence(task)}, choices.New(), memo.New(0), executor,
			options(ModeDryRun, false), WithValidator(v), WithPresenter(presenter))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, report.Success)
		assert.Empty(t, executor.calls())
		require.Len(t, presenter.kinds(TaskNotReady), 1)
		assert.EqualError(t, presenter.kinds(TaskNotReady)[0].Err, "probe crashed")
	})

	t.Run("Should plan past pre-choice tasks without touching the memo", func(t *testing.T) {
		executor := &recordingExecutor{}
		prompter := &scriptedPrompter{answers: []string{"y"}}
		memos := memo.New(0)
		g := New(staticCompiler{g: pickGuidebook()}, choices.New(), memos, executor,
			options(ModeDryRun, true), WithPrompter(prompter))

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Questions)
		assert.Empty(t, executor.calls())
		assert.Zero(t, memos.StatusMemo.Len())
	})
}

func TestGuide_Validation(t *testing.T) {
	t.Run("Should mark validated tasks done and skip their body", func(t *testing.T) {
		executor := &recordingExecutor{}
		task := &graph.Task{ID: "install", Body: "apt install tool", Language: "shell", Validate: "which tool"}
		v := validate.Func(func(context.Context, *graph.Task) (core.Status, error) {
			return core.StatusSuccess, nil
		})
		opts := options(ModeAuto, false)
		opts.Optimize = false
		memos := memo.New(0)
		g := New(staticCompiler{g: graph.NewSequence(task, shellTask("b", "echo B"))}, nil, memos, executor, opts, WithValidator(v))

		_, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"echo B"}, executor.calls())
		assert.Equal(t, core.StatusSuccess, memos.StatusMemo.Get("install"))
	})

	t.Run("Should run the body when validation errors", func(t *testing.T) {
		executor := &recordingExecutor{}
		task := &graph.Task{ID: "install", Body: "apt install tool", Language: "shell", Validate: "which tool"}
		v := validate.Func(func(context.Context, *graph.Task) (core.Status, error) {
			return core.StatusError, errors.New("probe crashed")
		})
		opts := options(ModeAuto, false)
		opts.Optimize = false
		g := New(staticCompiler{g: task}, nil, nil, executor, opts, WithValidator(v))

		_, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"apt install tool"}, executor.calls())
	})
}

func TestGuide_Scheduling(t *testing.T) {
	t.Run("Should order side effects even when jobs run concurrently", func(t *testing.T) {
		executor := &recordingExecutor{delay: func(body string) time.Duration {
			if body == "echo 1" {
				return 30 * time.Millisecond
			}
			return 0
		}}
		root := graph.NewSequence(
			graph.NewSubTask("s1", "First", shellTask("t1", "echo 1")),
			graph.NewSubTask("s2", "Second", shellTask("t2", "echo 2")),
			graph.NewSubTask("s3", "Third", shellTask("t3", "echo 3")),
		)
		opts := options(ModeAuto, false)
		opts.Concurrency = 3
		g := New(staticCompiler{g: root}, nil, nil, executor, opts)

		report, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, report.Steps)
		assert.Equal(t, []string{"echo 1", "echo 2", "echo 3"}, executor.calls())
	})

	t.Run("Should stop the rest of a step after a failing block", func(t *testing.T) {
		executor := &recordingExecutor{fail: map[string]bool{"echo 1": true}}
		presenter := &recordingPresenter{}
		root := graph.NewSubTask("s1", "Setup", graph.NewSequence(
			shellTask("t1", "echo 1"),
			shellTask("t2", "echo 2"),
		))
		g := New(staticCompiler{g: root}, nil, nil, executor, options(ModeAuto, false), WithPresenter(presenter))

		_, err := g.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, []string{"echo 1"}, executor.calls())
		assert.Len(t, presenter.kinds(TaskAborted), 1)
	})

	t.Run("Should pause between steps in step mode", func(t *testing.T) {
		executor := &recordingExecutor{}
		pauser := &countingPauser{}
		root := graph.NewSequence(
			graph.NewSubTask("s1", "First", shellTask("t1", "echo 1")),
			graph.NewSubTask("s2", "Second", shellTask("t2", "echo 2")),
			graph.NewSubTask("s3", "Third", shellTask("t3", "echo 3")),
		)
		g := New(staticCompiler{g: root}, nil, nil, executor, options(ModeStep, false), WithPauser(pauser))

		_, err := g.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), pauser.n.Load())
		assert.Len(t, executor.calls(), 3)
	})
}

func TestGuide_Question(t *testing.T) {
	t.Run("Should float the previous answer to the top", func(t *testing.T) {
		memos := memo.New(0)
		memos.Suggestions.Set("pick", "y")
		prompter := &scriptedPrompter{answers: []string{"y"}}
		g := New(staticCompiler{g: pickGuidebook()}, choices.New(), memos, &recordingExecutor{},
			options(ModeAuto, true), WithPrompter(prompter))

		_, err := g.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, prompter.questions, 1)
		opts := prompter.questions[0].Options
		require.Len(t, opts, 2)
		assert.Equal(t, "y", opts[0].Title)
		assert.True(t, opts[0].Suggested)
		assert.Equal(t, "x", opts[1].Title)
	})

	t.Run("Should prefill form fields from the previous answer", func(t *testing.T) {
		memos := memo.New(0)
		memos.Suggestions.Set("cfg", `{"Region":"eu-west-1"}`)
		form := graph.NewForm("cfg", "Configure",
			graph.Tile{Title: "Region", Default: "us-east-1"},
			graph.Tile{Title: "Zone", Default: "a"},
		)
		g := New(staticCompiler{g: form}, nil, memos, nil, options(ModeAuto, true))
		_, w, err := g.Plan(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, w, 1)

		q := g.question(w[0], 0)
		assert.True(t, q.Form)
		assert.Equal(t, map[string]string{"Region": "eu-west-1", "Zone": "a"}, q.Fields())
		assert.True(t, q.Options[0].Suggested)
		assert.False(t, q.Options[1].Suggested)
	})
}

func TestGuide_FormAnswers(t *testing.T) {
	for _, optimized := range []bool{true, false} {
		t.Run(fmt.Sprintf("Should pass form answers to tasks with optimize=%t", optimized), func(t *testing.T) {
			form := graph.NewForm("cfg", "Configure",
				graph.Tile{Title: "Region", Default: "us", Graph: shellTask("deploy", "deploy")},
			)
			state := choices.New()
			require.NoError(t, state.FormComplete("cfg", map[string]string{"Region": "eu"}))
			executor := &recordingExecutor{}
			opts := options(ModeAuto, false)
			opts.Optimize = optimized
			g := New(staticCompiler{g: form}, state, memo.New(0), executor, opts)

			report, err := g.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, report.Success)
			require.Equal(t, []string{"deploy"}, executor.calls())
			assert.Equal(t, map[string]string{"REGION": "eu"}, executor.envs[0])
		})
	}
}

func TestIsQuiet(t *testing.T) {
	t.Run("Should quiet exports and echoes unless verbose", func(t *testing.T) {
		assert.True(t, IsQuiet(shellTask("e", "export A=1"), false))
		assert.True(t, IsQuiet(shellTask("e", "  echo hi"), false))
		assert.False(t, IsQuiet(shellTask("e", "echo hi"), true))
		assert.True(t, IsQuiet(shellTask("e", "cd build\n  echo built"), false))
		assert.False(t, IsQuiet(shellTask("e", "make install"), false))
		assert.False(t, IsQuiet(shellTask("e", "make build"), false))
	})
}
