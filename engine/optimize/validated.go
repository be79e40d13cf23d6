package optimize

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/validate"
	"github.com/compozy/guidebook/pkg/logger"
)

const defaultValidateConcurrency = 4

// CollapseValidated removes every task whose predicate passes, and every
// subtask whose first task's predicate passes. Choices are not entered:
// predicates of unselected options are never run.
func CollapseValidated(
	ctx context.Context,
	g graph.Graph,
	v validate.Validator,
	opts Options,
) (graph.Graph, error) {
	candidates := validationCandidates(g)
	if len(candidates) == 0 {
		return g, nil
	}
	passed, err := runPredicates(ctx, candidates, v, opts)
	if err != nil {
		return nil, err
	}
	if len(passed) == 0 {
		return g, nil
	}
	return prune(g, passed), nil
}

// prune works top-down so a subtask is judged by its first task before
// that task is itself removed.
func prune(g graph.Graph, passed map[string]bool) graph.Graph {
	if t := rootTask(g); t != nil && passed[t.ID] {
		return nil
	}
	switch n := g.(type) {
	case *graph.Sequence:
		children := make([]graph.Graph, 0, len(n.Children))
		for _, child := range n.Children {
			children = append(children, prune(child, passed))
		}
		return sequenceOf(children, n.Title, n.Description)
	case *graph.SubTask:
		out := *n
		out.Graph = prune(n.Graph, passed)
		return &out
	}
	return g
}

// rootTask is the task whose predicate stands for n.
func rootTask(n graph.Graph) *graph.Task {
	switch node := n.(type) {
	case *graph.Task:
		if node.Validate != "" {
			return node
		}
	case *graph.SubTask:
		blocks := graph.Blocks(node.Graph)
		if len(blocks) > 0 && blocks[0].Validate != "" {
			return blocks[0]
		}
	}
	return nil
}

func validationCandidates(g graph.Graph) []*graph.Task {
	seen := make(map[string]bool)
	var out []*graph.Task
	graph.Walk(g, false, func(n graph.Graph) bool {
		if t := rootTask(n); t != nil && !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t)
		}
		return true
	})
	return out
}

func runPredicates(
	ctx context.Context,
	tasks []*graph.Task,
	v validate.Validator,
	opts Options,
) (map[string]bool, error) {
	log := logger.FromContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultValidateConcurrency
	}
	var mu sync.Mutex
	passed := make(map[string]bool, len(tasks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for _, t := range tasks {
		eg.Go(func() error {
			status, err := v.Validate(egCtx, t)
			if err != nil {
				if opts.ThrowErrors {
					return err
				}
				log.Debug("Ignoring validation failure", "task_id", t.ID, "error", err)
				return nil
			}
			if status == core.StatusSuccess {
				mu.Lock()
				passed[t.ID] = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return passed, nil
}
