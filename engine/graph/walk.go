package graph

// Walk visits g depth-first in document order. Returning false from fn
// stops the descent below the current node. Choice tiles are visited only
// when descendChoices is set.
func Walk(g Graph, descendChoices bool, fn func(Graph) bool) {
	if g == nil {
		return
	}
	if !fn(g) {
		return
	}
	switch n := g.(type) {
	case *Sequence:
		for _, child := range n.Children {
			Walk(child, descendChoices, fn)
		}
	case *SubTask:
		Walk(n.Graph, descendChoices, fn)
	case *Choice:
		if !descendChoices {
			return
		}
		for _, tile := range n.Tiles {
			Walk(tile.Graph, descendChoices, fn)
		}
	}
}

// Blocks lists the tasks reachable from g without crossing a choice.
func Blocks(g Graph) []*Task {
	var tasks []*Task
	Walk(g, false, func(n Graph) bool {
		if t, ok := n.(*Task); ok {
			tasks = append(tasks, t)
		}
		return true
	})
	return tasks
}

// Choices lists the choices reachable from g without crossing a choice.
func Choices(g Graph) []*Choice {
	var choices []*Choice
	Walk(g, false, func(n Graph) bool {
		if c, ok := n.(*Choice); ok {
			choices = append(choices, c)
		}
		return true
	})
	return choices
}

// HasChoice reports whether a choice is reachable from g.
func HasChoice(g Graph) bool {
	return len(Choices(g)) > 0
}

// IsEmpty reports whether g holds no tasks and no choices.
func IsEmpty(g Graph) bool {
	empty := true
	Walk(g, false, func(n Graph) bool {
		switch n.(type) {
		case *Task, *Choice:
			empty = false
		}
		return empty
	})
	return empty
}

// ExtractTitle returns the title of the outermost titled grouping.
func ExtractTitle(g Graph) string {
	switch n := g.(type) {
	case *Sequence:
		if n.Title != "" {
			return n.Title
		}
		if len(n.Children) == 1 {
			return ExtractTitle(n.Children[0])
		}
	case *SubTask:
		return n.Title
	}
	return ""
}

// ExtractDescription is the description counterpart of ExtractTitle.
func ExtractDescription(g Graph) string {
	switch n := g.(type) {
	case *Sequence:
		if n.Description != "" || n.Title != "" {
			return n.Description
		}
		if len(n.Children) == 1 {
			return ExtractDescription(n.Children[0])
		}
	case *SubTask:
		return n.Description
	}
	return ""
}

// Count returns the number of nodes in g, tiles included.
func Count(g Graph) int {
	n := 0
	Walk(g, true, func(Graph) bool {
		n++
		return true
	})
	return n
}
