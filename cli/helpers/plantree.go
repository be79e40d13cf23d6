package helpers

import (
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/wizard"
)

// RenderPlan draws a wizard as a tree: choice steps list their tiles, task
// steps list their tasks with a status mark.
func RenderPlan(title string, w wizard.Wizard, color bool) string {
	styles := newPresenterStyles(color)
	root := tree.Root(styles.title.Render(title)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(styles.muted)
	for _, step := range w {
		switch step.Kind {
		case wizard.ChoiceStep:
			root.Child(choiceNode(step, styles))
		case wizard.TaskStep:
			root.Child(taskStepNode(step, styles))
		}
	}
	return root.String()
}

func choiceNode(step *wizard.Step, styles presenterStyles) *tree.Tree {
	label := "? " + step.Name
	if !step.IsPending() {
		label = "✓ " + step.Name
	}
	node := tree.Root(styles.step.Render(label)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(styles.muted)
	if step.Choice == nil {
		return node
	}
	for _, tile := range step.Choice.Tiles {
		text := tile.Title
		if tile.Default != "" {
			text += " = " + tile.Default
		}
		node.Child(styles.muted.Render(text))
	}
	return node
}

func taskStepNode(step *wizard.Step, styles presenterStyles) *tree.Tree {
	node := tree.Root(styles.title.Render(StatusMark(step.Status) + " " + step.Name)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(styles.muted)
	for _, t := range step.Blocks() {
		node.Child(taskLabel(t, styles))
	}
	return node
}

func taskLabel(t *graph.Task, styles presenterStyles) string {
	label := t.Summary()
	switch {
	case t.Exec != "":
		label += styles.muted.Render("  [" + t.Exec + "]")
	case t.Language != "":
		label += styles.muted.Render("  [" + t.Language + "]")
	}
	return label
}

// StatusMark renders a status as a single glyph.
func StatusMark(s core.Status) string {
	switch s {
	case core.StatusSuccess:
		return "✓"
	case core.StatusError:
		return "✗"
	}
	return "○"
}
