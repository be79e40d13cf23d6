package helpers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/guide"
	"github.com/compozy/guidebook/engine/wizard"
)

func TestCategorize(t *testing.T) {
	t.Run("Should map unresolved questions to their exit code", func(t *testing.T) {
		err := fmt.Errorf("run failed: %w", core.NewUnresolvedError(2))
		assert.Equal(t, ExitUnresolved, ExitCode(err))
		assert.Equal(t, core.ErrCodeUnresolved, Categorize(err).Code)
	})
	t.Run("Should map compile errors to their exit code", func(t *testing.T) {
		err := core.NewCompileError(errors.New("bad yaml"))
		assert.Equal(t, ExitCompile, ExitCode(err))
	})
	t.Run("Should map an operator abort", func(t *testing.T) {
		err := core.NewPromptError("os", ErrAborted)
		assert.Equal(t, ExitAborted, ExitCode(err))
	})
	t.Run("Should default to a generic failure", func(t *testing.T) {
		assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
		assert.Equal(t, ExitOK, ExitCode(nil))
	})
	t.Run("Should keep an existing CLI error", func(t *testing.T) {
		cliErr := NewCliError("NO_GUIDEBOOK", "no guidebook found")
		assert.Same(t, cliErr, Categorize(fmt.Errorf("wrap: %w", cliErr)))
	})
}

func TestOutputError(t *testing.T) {
	t.Run("Should write a plain message without color", func(t *testing.T) {
		var buf bytes.Buffer
		OutputError(&buf, errors.New("boom"), false)
		assert.Equal(t, "Error: boom\n", buf.String())
	})
}

func TestPresenter(t *testing.T) {
	task := &graph.Task{ID: "t1", Body: "make install\nmake test"}
	t.Run("Should render task lifecycle events", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPresenter(&buf, false, true, 80)
		p.Event(guide.Event{Kind: guide.StepStarted, Step: "Install"})
		p.Event(guide.Event{Kind: guide.TaskRunning, Step: "Install", Task: task})
		p.Event(guide.Event{Kind: guide.TaskSucceeded, Step: "Install", Task: task})
		p.Summary(true)
		out := buf.String()
		assert.Contains(t, out, "▸ Install")
		assert.Contains(t, out, "✓ make install")
		assert.Contains(t, out, "Guidebook successful")
	})
	t.Run("Should hide quiet tasks unless they fail", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPresenter(&buf, false, true, 80)
		p.Event(guide.Event{Kind: guide.TaskSucceeded, Task: task, Quiet: true})
		assert.Empty(t, buf.String())
		p.Event(guide.Event{Kind: guide.TaskFailed, Task: task, Quiet: true, Err: errors.New("exit 2")})
		assert.Contains(t, buf.String(), "✗ make install")
		assert.Contains(t, buf.String(), "exit 2")
	})
	t.Run("Should report an incomplete run", func(t *testing.T) {
		var buf bytes.Buffer
		NewPresenter(&buf, false, true, 80).Summary(false)
		assert.Contains(t, buf.String(), "Guidebook incomplete")
	})
	t.Run("Should write whole lines under concurrent events", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPresenter(&buf, false, true, 80)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Event(guide.Event{Kind: guide.TaskPlanned, Task: task})
			}()
		}
		wg.Wait()
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 20)
		for _, line := range lines {
			assert.Equal(t, "  ○ make install", line)
		}
	})
}

func TestBanner(t *testing.T) {
	t.Run("Should skip the banner when it does not fit", func(t *testing.T) {
		assert.Empty(t, Banner("A very long guidebook title", 20))
	})
	t.Run("Should render a short title", func(t *testing.T) {
		assert.NotEmpty(t, Banner("Go", 80))
	})
}

func TestSelectLabel(t *testing.T) {
	t.Run("Should mark the previous answer", func(t *testing.T) {
		assert.Equal(t, "linux  "+selectedHint, SelectLabel(guide.QuestionOption{Title: "linux", Suggested: true}))
		assert.Equal(t, "darwin", SelectLabel(guide.QuestionOption{Title: "darwin"}))
	})
}

func TestRenderPlan(t *testing.T) {
	t.Run("Should list choices with tiles and steps with tasks", func(t *testing.T) {
		choice := graph.NewChoice("os@steps[0]", "Operating system",
			graph.Tile{Title: "linux"}, graph.Tile{Title: "darwin"})
		w := wizard.Wizard{
			{Kind: wizard.TaskStep, Key: "prep", Name: "Prepare", Graph: &graph.Task{ID: "a", Body: "apt-get update", Exec: "sudo"}},
			{Kind: wizard.ChoiceStep, Key: choice.ID, Name: choice.Title, Choice: choice},
		}
		out := RenderPlan("Setup", w, false)
		assert.Contains(t, out, "Setup")
		assert.Contains(t, out, "○ Prepare")
		assert.Contains(t, out, "apt-get update  [sudo]")
		assert.Contains(t, out, "? Operating system")
		assert.Contains(t, out, "linux")
		assert.Contains(t, out, "darwin")
	})
}
