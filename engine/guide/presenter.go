package guide

import (
	"regexp"
	"strings"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
)

type EventKind string

const (
	StepStarted   EventKind = "step_started"
	StepFinished  EventKind = "step_finished"
	StepPaused    EventKind = "step_paused"
	TaskSkipped   EventKind = "task_skipped"
	TaskReady     EventKind = "task_ready"
	TaskNotReady  EventKind = "task_not_ready"
	TaskPlanned   EventKind = "task_planned"
	TaskRunning   EventKind = "task_running"
	TaskSucceeded EventKind = "task_succeeded"
	TaskFailed    EventKind = "task_failed"
	TaskAborted   EventKind = "task_aborted"
)

// Event reports progress on one step or task. Task is nil for step level
// events.
type Event struct {
	Kind   EventKind
	Step   string
	Task   *graph.Task
	Status core.Status
	Quiet  bool
	Err    error
}

// Presenter renders progress. Implementations must be safe for concurrent
// use, since task jobs may report from several goroutines.
type Presenter interface {
	Title(title, description string)
	Notice(message string)
	Event(e Event)
	Summary(success bool)
}

type NopPresenter struct{}

func (NopPresenter) Title(string, string) {}
func (NopPresenter) Notice(string)        {}
func (NopPresenter) Event(Event)          {}
func (NopPresenter) Summary(bool)         {}

var echoLine = regexp.MustCompile(`(?m)^\s*echo.+`)

// IsQuiet reports whether a task is housekeeping that is not worth
// showing unless verbose: an environment export, or a body echoing on
// any of its lines.
func IsQuiet(t *graph.Task, verbose bool) bool {
	if verbose || t == nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(t.Body), "export ") || echoLine.MatchString(t.Body)
}
