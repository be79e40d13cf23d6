package compile

import (
	"context"
	"strings"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/graph"
	"github.com/compozy/guidebook/pkg/logger"
)

var (
	osAliases = map[string][]string{
		"darwin":  {"macos", "mac", "osx", "darwin", "macos (darwin)"},
		"linux":   {"linux"},
		"windows": {"windows", "win32", "win"},
	}
	archAliases = map[string][]string{
		"amd64": {"amd64", "x86_64", "x64", "intel"},
		"arm64": {"arm64", "aarch64", "apple silicon", "m1"},
		"386":   {"386", "x86", "i386"},
	}
)

// resolveAprioris splices in, for every unanswered selection whose tiles
// all name one kind of host fact, the tile matching the host.
func resolveAprioris(ctx context.Context, g graph.Graph, state *choices.State, host Host) graph.Graph {
	switch n := g.(type) {
	case *graph.Sequence:
		out := *n
		out.Children = make([]graph.Graph, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = resolveAprioris(ctx, child, state, host)
		}
		return &out
	case *graph.SubTask:
		out := *n
		out.Graph = resolveAprioris(ctx, n.Graph, state, host)
		return &out
	case *graph.Choice:
		if tile, ok := aprioriTile(n, state, host); ok {
			logger.FromContext(ctx).Debug("Resolved choice from host", "choice", n.ID, "tile", tile.Title)
			if tile.Graph == nil {
				return graph.Empty()
			}
			return resolveAprioris(ctx, tile.Graph, state, host)
		}
		out := *n
		out.Tiles = make([]graph.Tile, len(n.Tiles))
		for i, tile := range n.Tiles {
			tile.Graph = resolveAprioris(ctx, tile.Graph, state, host)
			out.Tiles[i] = tile
		}
		return &out
	}
	return g
}

func aprioriTile(c *graph.Choice, state *choices.State, host Host) (graph.Tile, bool) {
	if c.Form || len(c.Tiles) == 0 || state.Contains(c.ID) {
		return graph.Tile{}, false
	}
	for _, fact := range []struct {
		aliases map[string][]string
		value   string
	}{{osAliases, host.OS}, {archAliases, host.Arch}} {
		if !allTilesIn(c.Tiles, fact.aliases) {
			continue
		}
		for _, tile := range c.Tiles {
			if matches(tile.Title, fact.aliases[fact.value]) {
				return tile, true
			}
		}
	}
	return graph.Tile{}, false
}

func allTilesIn(tiles []graph.Tile, aliases map[string][]string) bool {
	for _, tile := range tiles {
		known := false
		for _, names := range aliases {
			if matches(tile.Title, names) {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return true
}

func matches(title string, names []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, name := range names {
		if normalized == name {
			return true
		}
	}
	return false
}
