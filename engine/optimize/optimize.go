// Package optimize rewrites a compiled decision graph into the smallest
// graph with the same execution semantics.
package optimize

import (
	"context"
	"time"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/validate"
	"github.com/compozy/guidebook/pkg/logger"
)

type Options struct {
	// Validate enables the collapse-validated pass.
	Validate bool
	// ThrowErrors propagates predicate failures instead of logging them.
	ThrowErrors bool
	// Concurrency bounds the predicates evaluated at once; 0 means 4.
	Concurrency int
}

// Optimize runs the rewrite passes in their fixed order. The result is
// never nil: an empty plan comes back as graph.Empty().
func Optimize(
	ctx context.Context,
	g graph.Graph,
	state *choices.State,
	opts Options,
	v validate.Validator,
) (graph.Graph, error) {
	log := logger.FromContext(ctx)
	started := time.Now()
	g = HoistSubTasks(g)
	g = CollapseMadeChoices(g, state)
	g = EliminateDeadCode(g)
	if opts.Validate && v != nil {
		var err error
		g, err = CollapseValidated(ctx, g, v, opts)
		if err != nil {
			return nil, err
		}
		g = EliminateDeadCode(g)
	}
	g = PropagateTitles(g)
	if g == nil {
		g = graph.Empty()
	}
	log.Debug("Optimized graph", "nodes", graph.Count(g), "duration", time.Since(started))
	return g, nil
}

// sequenceOf builds the canonical sequence for children: anonymous child
// sequences are spliced in and an anonymous sequence of one child is that
// child. It returns nil when nothing is left.
func sequenceOf(children []graph.Graph, title, description string) graph.Graph {
	flat := make([]graph.Graph, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		if seq, ok := child.(*graph.Sequence); ok && seq.Title == "" && seq.Description == "" {
			flat = append(flat, seq.Children...)
			continue
		}
		flat = append(flat, child)
	}
	if len(flat) == 0 {
		return nil
	}
	if len(flat) == 1 && title == "" && description == "" {
		return flat[0]
	}
	return &graph.Sequence{Children: flat, Title: title, Description: description}
}

// rewrite rebuilds g bottom-up, applying fn to every node after its
// children have been rewritten. A sequence that canonicalizes to a single
// child is not passed to fn again. Choice tiles are rewritten too; a tile
// whose graph vanished stays, with a nil graph.
func rewrite(g graph.Graph, fn func(graph.Graph) graph.Graph) graph.Graph {
	switch n := g.(type) {
	case nil:
		return nil
	case *graph.Sequence:
		children := make([]graph.Graph, 0, len(n.Children))
		for _, child := range n.Children {
			children = append(children, rewrite(child, fn))
		}
		out := sequenceOf(children, n.Title, n.Description)
		if seq, ok := out.(*graph.Sequence); ok {
			return fn(seq)
		}
		return out
	case *graph.SubTask:
		out := *n
		out.Graph = rewrite(n.Graph, fn)
		return fn(&out)
	case *graph.Choice:
		out := *n
		out.Tiles = make([]graph.Tile, len(n.Tiles))
		for i, tile := range n.Tiles {
			tile.Graph = rewrite(tile.Graph, fn)
			out.Tiles[i] = tile
		}
		return fn(&out)
	default:
		return fn(g)
	}
}
