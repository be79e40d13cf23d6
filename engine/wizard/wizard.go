// Package wizard flattens an optimized graph into the linear list of steps
// the engine walks: questions to ask and groups of tasks to run.
package wizard

import (
	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/memo"
	"github.com/compozy/guidebook/engine/optimize"
)

type StepKind string

const (
	ChoiceStep StepKind = "choice"
	TaskStep   StepKind = "task"
)

// Step is one entry of a Wizard. Choice is set for choice steps and Graph
// for task steps.
type Step struct {
	Kind        StepKind      `json:"kind"`
	Key         string        `json:"key"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Choice      *graph.Choice `json:"choice,omitempty"`
	Graph       graph.Graph   `json:"graph,omitempty"`
	Status      core.Status   `json:"status,omitempty"`

	blocks []*graph.Task
}

// Blocks lists the tasks a task step runs, in document order.
func (s *Step) Blocks() []*graph.Task {
	if s.blocks == nil && s.Graph != nil {
		s.blocks = graph.Blocks(s.Graph)
	}
	return s.blocks
}

func (s *Step) IsPending() bool {
	return !s.Status.IsSuccess()
}

type Wizard []*Step

// FirstPendingChoice returns the index of the first unanswered choice
// step, or -1.
func (w Wizard) FirstPendingChoice() int {
	for i, s := range w {
		if s.Kind == ChoiceStep && s.IsPending() {
			return i
		}
	}
	return -1
}

// PendingTasks returns the task steps before index end that still need to
// run. A negative end means the whole wizard.
func (w Wizard) PendingTasks(end int) []*Step {
	if end < 0 || end > len(w) {
		end = len(w)
	}
	var out []*Step
	for _, s := range w[:end] {
		if s.Kind == TaskStep && s.IsPending() {
			out = append(out, s)
		}
	}
	return out
}

// PendingChoices counts unanswered choice steps.
func (w Wizard) PendingChoices() int {
	n := 0
	for _, s := range w {
		if s.Kind == ChoiceStep && s.IsPending() {
			n++
		}
	}
	return n
}

type Options struct {
	// Previous is the wizard of the last cycle. It only lets unchanged
	// steps reuse their block lists.
	Previous Wizard
	Choices  *choices.State
}

// Wizardify walks g in document order. A subtask free of choices becomes
// one task step; a subtask holding choices is opened so each choice gets
// its own step in place. A choice step is successful when the state holds
// a valid answer, in which case the walk continues into what was chosen.
func Wizardify(g graph.Graph, memos *memo.Memos, opts Options) Wizard {
	b := &builder{memos: memos, state: opts.Choices, previous: indexByKey(opts.Previous)}
	b.walk(g, "", "")
	return b.steps
}

type builder struct {
	memos    *memo.Memos
	state    *choices.State
	previous map[string]*Step
	steps    Wizard
}

func indexByKey(w Wizard) map[string]*Step {
	if len(w) == 0 {
		return nil
	}
	out := make(map[string]*Step, len(w))
	for _, s := range w {
		out[string(s.Kind)+"/"+s.Key] = s
	}
	return out
}

func (b *builder) walk(g graph.Graph, title, description string) {
	switch n := g.(type) {
	case nil:
	case *graph.Sequence:
		if n.Title != "" {
			title, description = n.Title, n.Description
		}
		for _, child := range n.Children {
			b.walk(child, title, description)
		}
	case *graph.SubTask:
		if graph.HasChoice(n.Graph) {
			b.walk(n.Graph, n.Title, n.Description)
			return
		}
		b.addTask(n.ID, n.Title, n.Description, n)
	case *graph.Task:
		name := title
		if name == "" {
			name = n.Summary()
		}
		b.addTask(n.ID, name, description, n)
	case *graph.Choice:
		b.addChoice(n)
	}
}

func (b *builder) addTask(key, name, description string, g graph.Graph) {
	step := &Step{Kind: TaskStep, Key: key, Name: name, Description: description, Graph: g}
	if prev, ok := b.previous[string(TaskStep)+"/"+key]; ok && prev.Graph == g {
		step.blocks = prev.blocks
	}
	blocks := step.Blocks()
	if len(blocks) == 0 {
		return
	}
	step.Status = core.StatusSuccess
	for _, t := range blocks {
		if b.memos.StatusOf(t) != core.StatusSuccess {
			step.Status = core.StatusBlank
			break
		}
	}
	b.steps = append(b.steps, step)
}

func (b *builder) addChoice(c *graph.Choice) {
	step := &Step{Kind: ChoiceStep, Key: c.ID, Name: c.Title, Description: c.Description, Choice: c}
	b.steps = append(b.steps, step)
	answer, ok := b.state.Valid(c)
	if !ok {
		return
	}
	step.Status = core.StatusSuccess
	if c.Form {
		b.walk(optimize.ParameterizeForm(c, answer), "", "")
		return
	}
	tile, _ := c.Tile(answer.Value)
	b.walk(tile.Graph, tile.Title, tile.Description)
}
