package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/engine/guidebook"
)

func task(body string) guidebook.Step {
	return guidebook.Step{Task: &guidebook.Task{Body: body, Language: "shell"}}
}

func sampleDoc() *guidebook.Document {
	return &guidebook.Document{
		Title: "Sample",
		Steps: []guidebook.Step{
			task("echo A"),
			{Choice: &guidebook.Choice{
				Title: "pick",
				Tiles: []guidebook.Tile{
					{Title: "x", Steps: []guidebook.Step{task("echo X")}},
					{Title: "y", Steps: []guidebook.Step{task("echo Y")}},
				},
			}},
			{SubTask: &guidebook.SubTask{Title: "Finish", Steps: []guidebook.Step{task("echo done")}}},
		},
	}
}

func TestBuild(t *testing.T) {
	t.Run("Should mirror the document structure", func(t *testing.T) {
		g := Build(sampleDoc())
		seq, ok := g.(*graph.Sequence)
		require.True(t, ok)
		require.Len(t, seq.Children, 3)
		assert.Equal(t, "echo A", seq.Children[0].(*graph.Task).Body)
		choice := seq.Children[1].(*graph.Choice)
		assert.Equal(t, "pick@steps[1]", choice.ID)
		assert.Len(t, choice.Tiles, 2)
		st := seq.Children[2].(*graph.SubTask)
		assert.Equal(t, "Finish@steps[2]", st.ID)
	})
	t.Run("Should keep identities stable across builds", func(t *testing.T) {
		first := graph.Blocks(Build(sampleDoc()))
		second := graph.Blocks(Build(sampleDoc()))
		require.Len(t, first, 2)
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
		assert.NotEqual(t, first[0].ID, first[1].ID)
	})
	t.Run("Should give identical bodies at different positions distinct identities", func(t *testing.T) {
		doc := &guidebook.Document{Title: "Twice", Steps: []guidebook.Step{task("make"), task("make")}}
		blocks := graph.Blocks(Build(doc))
		require.Len(t, blocks, 2)
		assert.NotEqual(t, blocks[0].ID, blocks[1].ID)
	})
}

func platformDoc() *guidebook.Document {
	return &guidebook.Document{
		Title: "Platform",
		Steps: []guidebook.Step{{Choice: &guidebook.Choice{
			Title: "Operating system",
			Tiles: []guidebook.Tile{
				{Title: "MacOS", Steps: []guidebook.Step{task("brew install jq")}},
				{Title: "Linux", Steps: []guidebook.Step{task("apt-get install jq")}},
			},
		}}},
	}
}

func TestCompiler_Aprioris(t *testing.T) {
	ctx := context.Background()
	t.Run("Should resolve host choices when enabled", func(t *testing.T) {
		c := New(platformDoc(), Options{Aprioris: true, Host: Host{OS: "linux", Arch: "amd64"}})
		g, err := c.Compile(ctx, choices.New())
		require.NoError(t, err)
		assert.False(t, graph.HasChoice(g))
		blocks := graph.Blocks(g)
		require.Len(t, blocks, 1)
		assert.Equal(t, "apt-get install jq", blocks[0].Body)
	})
	t.Run("Should ask when disabled", func(t *testing.T) {
		c := New(platformDoc(), Options{Host: Host{OS: "linux"}})
		g, err := c.Compile(ctx, choices.New())
		require.NoError(t, err)
		assert.True(t, graph.HasChoice(g))
	})
	t.Run("Should let an explicit answer win", func(t *testing.T) {
		c := New(platformDoc(), Options{Aprioris: true, Host: Host{OS: "linux"}})
		state := choices.FromValues(map[string]string{"Operating system@steps[0]": "MacOS"})
		g, err := c.Compile(ctx, state)
		require.NoError(t, err)
		assert.True(t, graph.HasChoice(g))
	})
	t.Run("Should leave unrelated choices alone", func(t *testing.T) {
		c := New(sampleDoc(), Options{Aprioris: true, Host: Host{OS: "linux"}})
		g, err := c.Compile(ctx, nil)
		require.NoError(t, err)
		assert.True(t, graph.HasChoice(g))
	})
	t.Run("Should not touch the cached raw graph", func(t *testing.T) {
		c := New(platformDoc(), Options{Aprioris: true, Host: Host{OS: "darwin"}})
		_, err := c.Compile(ctx, nil)
		require.NoError(t, err)
		assert.True(t, graph.HasChoice(c.raw))
	})
}

func TestCompiler_Empty(t *testing.T) {
	t.Run("Should fail on documents without steps", func(t *testing.T) {
		_, err := New(&guidebook.Document{Title: "Empty"}, Options{}).Compile(context.Background(), nil)
		assert.True(t, core.HasCode(err, core.ErrCodeCompile))
	})
}
