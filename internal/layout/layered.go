package layout

import "github.com/rendis/flowgraph/internal/dag"

// LayerNode is a top-level node to place, with its final footprint.
type LayerNode struct {
	ID   string
	Size Size
}

// LayeredConfig spaces the ranks of the layered layout.
type LayeredConfig struct {
	NodeGap float64 // horizontal space between nodes of one rank
	RankGap float64 // vertical space between ranks
}

// DefaultLayeredConfig returns the spacing used by the converter.
func DefaultLayeredConfig() LayeredConfig {
	return LayeredConfig{NodeGap: 40, RankGap: 80}
}

// Layered places nodes top to bottom by longest-path rank. Each rank runs
// left to right in input order and is centred on the widest rank; a rank is
// as tall as its tallest node. Edges naming ids outside nodes are ignored,
// so callers pass only dependency edges between top-level nodes.
func Layered(nodes []LayerNode, edges []dag.Edge, cfg LayeredConfig) map[string]Point {
	sizes := make(map[string]Size, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := sizes[n.ID]; dup {
			continue
		}
		sizes[n.ID] = n.Size
		ids = append(ids, n.ID)
	}

	levels := dag.Levels(ids, dag.Ranks(ids, edges))

	widths := make([]float64, len(levels))
	widest := 0.0
	for r, level := range levels {
		for i, id := range level {
			if i > 0 {
				widths[r] += cfg.NodeGap
			}
			widths[r] += sizes[id].Width
		}
		widest = max(widest, widths[r])
	}

	out := make(map[string]Point, len(ids))
	y := 0.0
	for r, level := range levels {
		x := (widest - widths[r]) / 2
		tallest := 0.0
		for _, id := range level {
			out[id] = Point{X: x, Y: y}
			x += sizes[id].Width + cfg.NodeGap
			tallest = max(tallest, sizes[id].Height)
		}
		y += tallest + cfg.RankGap
	}
	return out
}
