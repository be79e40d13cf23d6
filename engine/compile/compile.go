// Package compile turns a guidebook document into its raw decision graph.
package compile

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/guidebook"
)

type Options struct {
	// Aprioris resolves choices between host facts (operating system, CPU
	// architecture) from the host instead of asking.
	Aprioris bool
	Host     Host
}

// Host describes the machine the guidebook runs on.
type Host struct {
	OS   string
	Arch string
}

func CurrentHost() Host {
	return Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Compiler caches the raw graph of one document. Only apriori resolution
// depends on the choice state, so it is applied per call.
type Compiler struct {
	doc  *guidebook.Document
	opts Options

	once sync.Once
	raw  graph.Graph
}

func New(doc *guidebook.Document, opts Options) *Compiler {
	if opts.Host == (Host{}) {
		opts.Host = CurrentHost()
	}
	return &Compiler{doc: doc, opts: opts}
}

func (c *Compiler) Title() string {
	return c.doc.Title
}

func (c *Compiler) Description() string {
	return c.doc.Description
}

// Compile returns the raw graph. Answers already in state always win over
// apriori knowledge.
func (c *Compiler) Compile(ctx context.Context, state *choices.State) (graph.Graph, error) {
	c.once.Do(func() {
		c.raw = Build(c.doc)
	})
	if c.raw == nil {
		return nil, core.NewCompileError(fmt.Errorf("guidebook %q has no steps", c.doc.Title))
	}
	if !c.opts.Aprioris {
		return c.raw, nil
	}
	return resolveAprioris(ctx, c.raw, state, c.opts.Host), nil
}

// Build constructs the graph of doc. Choice identities are the choice
// title plus its position in the document; task identities hash the
// position together with what the task runs.
func Build(doc *guidebook.Document) graph.Graph {
	return buildSteps(doc.Steps, "steps")
}

func buildSteps(steps []guidebook.Step, path string) graph.Graph {
	children := make([]graph.Graph, 0, len(steps))
	for i, step := range steps {
		if g := buildStep(step, fmt.Sprintf("%s[%d]", path, i)); g != nil {
			children = append(children, g)
		}
	}
	if len(children) == 0 {
		return nil
	}
	return graph.NewSequence(children...)
}

func buildStep(step guidebook.Step, path string) graph.Graph {
	switch {
	case step.Task != nil:
		return buildTask(step.Task, path)
	case step.SubTask != nil:
		st := step.SubTask
		return &graph.SubTask{
			ID:          st.Title + "@" + path,
			Title:       st.Title,
			Description: st.Description,
			Graph:       buildSteps(st.Steps, path+".steps"),
		}
	case step.Choice != nil:
		return buildChoice(step.Choice, path)
	case step.Steps != nil:
		return buildSteps(step.Steps, path+".steps")
	}
	return nil
}

func buildTask(t *guidebook.Task, path string) *graph.Task {
	id := core.ShortHash(map[string]any{
		"path":     path,
		"body":     t.Body,
		"language": t.Language,
		"exec":     t.Exec,
	}, 16)
	return &graph.Task{
		ID:       id,
		Body:     strings.TrimRight(t.Body, "\n"),
		Language: t.Language,
		Exec:     t.Exec,
		Validate: t.Validate,
		Optional: t.Optional,
		Async:    t.Async,
		Env:      t.Env,
		Source:   path,
	}
}

func buildChoice(c *guidebook.Choice, path string) *graph.Choice {
	tiles := make([]graph.Tile, 0, len(c.Tiles))
	for i, tile := range c.Tiles {
		tiles = append(tiles, graph.Tile{
			Title:       tile.Title,
			Description: tile.Description,
			Default:     tile.Default,
			Graph:       buildSteps(tile.Steps, fmt.Sprintf("%s.tiles[%d].steps", path, i)),
		})
	}
	return &graph.Choice{
		ID:          c.Title + "@" + path,
		Title:       c.Title,
		Description: c.Description,
		Tiles:       tiles,
		Form:        c.Form,
	}
}
