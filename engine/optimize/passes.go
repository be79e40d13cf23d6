package optimize

import (
	"maps"
	"regexp"
	"strings"

	"dario.cat/mergo"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/graph"
)

// HoistSubTasks replaces a subtask that only groups other subtasks with a
// titled sequence of those subtasks.
func HoistSubTasks(g graph.Graph) graph.Graph {
	return rewrite(g, func(n graph.Graph) graph.Graph {
		st, ok := n.(*graph.SubTask)
		if !ok {
			return n
		}
		children, ok := onlySubTasks(st.Graph)
		if !ok {
			return n
		}
		return &graph.Sequence{Children: children, Title: st.Title, Description: st.Description}
	})
}

func onlySubTasks(g graph.Graph) ([]graph.Graph, bool) {
	switch n := g.(type) {
	case *graph.SubTask:
		return []graph.Graph{n}, true
	case *graph.Sequence:
		if len(n.Children) == 0 || n.Title != "" || n.Description != "" {
			return nil, false
		}
		for _, child := range n.Children {
			if _, ok := child.(*graph.SubTask); !ok {
				return nil, false
			}
		}
		return n.Children, true
	}
	return nil, false
}

// CollapseMadeChoices splices in the selected tile of every choice that
// has a valid answer. A form becomes the sequence of its fields' graphs,
// with each field value exported to the contained tasks.
func CollapseMadeChoices(g graph.Graph, state *choices.State) graph.Graph {
	if state == nil || state.Len() == 0 {
		return g
	}
	return rewrite(g, func(n graph.Graph) graph.Graph {
		c, ok := n.(*graph.Choice)
		if !ok {
			return n
		}
		answer, ok := state.Valid(c)
		if !ok {
			return n
		}
		if !c.Form {
			tile, _ := c.Tile(answer.Value)
			if tile.Graph == nil {
				return graph.Empty()
			}
			return tile.Graph
		}
		return ParameterizeForm(c, answer)
	})
}

// ParameterizeForm splices the tiles of an answered form, with every task
// seeing the field values in its environment.
func ParameterizeForm(c *graph.Choice, answer choices.Answer) graph.Graph {
	env := FormEnv(c, answer)
	parts := make([]graph.Graph, 0, len(c.Tiles))
	for _, tile := range c.Tiles {
		parts = append(parts, withEnv(tile.Graph, env))
	}
	if out := sequenceOf(parts, "", ""); out != nil {
		return out
	}
	return graph.Empty()
}

var envNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// FormEnv maps a form answer to environment variables, one per field,
// named after the field title in upper snake case. Fields the answer
// leaves out take their defaults.
func FormEnv(c *graph.Choice, answer choices.Answer) map[string]string {
	env := make(map[string]string, len(c.Tiles))
	for _, tile := range c.Tiles {
		value, ok := answer.Form[tile.Title]
		if !ok {
			value = tile.Default
		}
		env[EnvName(tile.Title)] = value
	}
	return env
}

func EnvName(title string) string {
	name := envNameUnsafe.ReplaceAllString(strings.TrimSpace(title), "_")
	return strings.ToUpper(strings.Trim(name, "_"))
}

func withEnv(g graph.Graph, env map[string]string) graph.Graph {
	return rewrite(g, func(n graph.Graph) graph.Graph {
		t, ok := n.(*graph.Task)
		if !ok {
			return n
		}
		out := *t
		merged := maps.Clone(t.Env)
		if merged == nil {
			merged = make(map[string]string, len(env))
		}
		if err := mergo.Merge(&merged, env, mergo.WithOverride); err != nil {
			return n
		}
		out.Env = merged
		return &out
	})
}

// EliminateDeadCode drops empty sequences and subtasks and choices left
// without tiles. Running it twice changes nothing.
func EliminateDeadCode(g graph.Graph) graph.Graph {
	return rewrite(g, func(n graph.Graph) graph.Graph {
		switch node := n.(type) {
		case *graph.Sequence:
			if len(node.Children) == 0 {
				return nil
			}
		case *graph.SubTask:
			if node.Graph == nil || graph.IsEmpty(node.Graph) {
				return nil
			}
		case *graph.Choice:
			if len(node.Tiles) == 0 {
				return nil
			}
		}
		return n
	})
}

// PropagateTitles keeps the label of a grouping that a rewrite removed: a
// titled sequence around a single subtask folds its title and description
// into that subtask, and an untitled subtask borrows the title of the
// grouping it wraps.
func PropagateTitles(g graph.Graph) graph.Graph {
	return rewrite(g, func(n graph.Graph) graph.Graph {
		switch node := n.(type) {
		case *graph.Sequence:
			if node.Title == "" || len(node.Children) != 1 {
				return n
			}
			st, ok := node.Children[0].(*graph.SubTask)
			if !ok {
				return n
			}
			out := *st
			if out.Title == "" {
				out.Title = node.Title
			}
			if out.Description == "" {
				out.Description = node.Description
			}
			return &out
		case *graph.SubTask:
			if node.Title != "" {
				return n
			}
			out := *node
			out.Title = graph.ExtractTitle(node.Graph)
			if out.Description == "" {
				out.Description = graph.ExtractDescription(node.Graph)
			}
			return &out
		}
		return n
	})
}
