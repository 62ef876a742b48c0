package layout

import (
	"testing"

	"github.com/rendis/flowgraph/internal/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(n int) []Size {
	cfg := DefaultConfig()
	out := make([]Size, n)
	for i := range out {
		out[i] = cfg.LeafSize()
	}
	return out
}

// --- Condition containers ---

func TestSizeCondition_LeafFormula(t *testing.T) {
	cfg := DefaultConfig()
	for _, tc := range []struct{ then, els int }{{0, 0}, {1, 0}, {0, 3}, {2, 1}, {4, 4}} {
		b := cfg.SizeCondition(leaves(tc.then), leaves(tc.els))
		rows := float64(max(tc.then, tc.els, 1))
		assert.Equal(t, cfg.Header+rows*cfg.RowHeight+2*cfg.Padding, b.Size.Height, "then=%d else=%d", tc.then, tc.els)
		assert.Equal(t, 500.0, b.Size.Width)
	}
}

func TestSizeCondition_Slots(t *testing.T) {
	b := DefaultConfig().SizeCondition(leaves(2), leaves(1))

	require.Len(t, b.Slots, 2)
	assert.Equal(t, []Point{{X: 40, Y: 70}, {X: 40, Y: 150}}, b.Slots[0])
	assert.Equal(t, []Point{{X: 280, Y: 70}}, b.Slots[1])
	assert.Equal(t, 250.0, b.Size.Height)
}

func TestSizeCondition_EmptyKeepsMinimumFootprint(t *testing.T) {
	b := DefaultConfig().SizeCondition(nil, nil)
	assert.Equal(t, Size{Width: 500, Height: 170}, b.Size)
	assert.Empty(t, b.Slots[0])
	assert.Empty(t, b.Slots[1])
}

func TestSizeCondition_TallChildStretchesRowInBothColumns(t *testing.T) {
	cfg := DefaultConfig()
	then := []Size{{Width: 180, Height: 170}, cfg.LeafSize()}
	els := []Size{cfg.LeafSize(), cfg.LeafSize()}

	b := cfg.SizeCondition(then, els)
	assert.Equal(t, 50.0+190+80+40, b.Size.Height)
	assert.Equal(t, 260.0, b.Slots[0][1].Y)
	assert.Equal(t, 260.0, b.Slots[1][1].Y, "rows stay aligned across columns")
}

func TestSizeCondition_ChildrenInsideBounds(t *testing.T) {
	cfg := DefaultConfig()
	b := cfg.SizeCondition(leaves(3), leaves(2))
	for _, col := range b.Slots {
		for _, p := range col {
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.LessOrEqual(t, p.X+cfg.NodeWidth, b.Size.Width)
			assert.LessOrEqual(t, p.Y+cfg.NodeHeight, b.Size.Height)
		}
	}
}

// --- Loop containers ---

func TestSizeLoop(t *testing.T) {
	b := DefaultConfig().SizeLoop(leaves(3))

	assert.Equal(t, Size{Width: 260, Height: 330}, b.Size)
	require.Len(t, b.Slots, 1)
	assert.Equal(t, []Point{{X: 40, Y: 70}, {X: 40, Y: 150}, {X: 40, Y: 230}}, b.Slots[0])
}

func TestSizeLoop_WidthIndependentOfContent(t *testing.T) {
	cfg := DefaultConfig()
	narrow := cfg.SizeLoop(leaves(1))
	wide := cfg.SizeLoop([]Size{{Width: 500, Height: 60}})

	assert.Equal(t, narrow.Size.Width, wide.Size.Width)
	assert.Equal(t, 20.0, wide.Slots[0][0].X)
}

func TestSizeLoop_EmptyKeepsOneRow(t *testing.T) {
	b := DefaultConfig().SizeLoop(nil)
	assert.Equal(t, 170.0, b.Size.Height)
}

func TestSizeLoop_NarrowerThanCondition(t *testing.T) {
	cfg := DefaultConfig()
	assert.Less(t, cfg.SizeLoop(leaves(1)).Size.Width, cfg.SizeCondition(leaves(1), nil).Size.Width)
}

// --- Layered layout ---

func TestLayered_RanksAndCentring(t *testing.T) {
	leaf := DefaultConfig().LeafSize()
	nodes := []LayerNode{
		{ID: "a", Size: leaf},
		{ID: "b", Size: leaf},
		{ID: "c", Size: Size{Width: 500, Height: 250}},
	}
	edges := []dag.Edge{{From: "a", To: "b"}, {From: "a", To: "c"}}

	pos := Layered(nodes, edges, DefaultLayeredConfig())
	assert.Equal(t, Point{X: 270, Y: 0}, pos["a"])
	assert.Equal(t, Point{X: 0, Y: 140}, pos["b"])
	assert.Equal(t, Point{X: 220, Y: 140}, pos["c"])
}

func TestLayered_RankHeightIsTallestNode(t *testing.T) {
	nodes := []LayerNode{
		{ID: "big", Size: Size{Width: 100, Height: 300}},
		{ID: "small", Size: Size{Width: 100, Height: 50}},
		{ID: "next", Size: Size{Width: 100, Height: 50}},
	}
	edges := []dag.Edge{{From: "small", To: "next"}}

	pos := Layered(nodes, edges, DefaultLayeredConfig())
	assert.Equal(t, 380.0, pos["next"].Y)
}

func TestLayered_IgnoresForeignEdges(t *testing.T) {
	leaf := DefaultConfig().LeafSize()
	nodes := []LayerNode{{ID: "a", Size: leaf}, {ID: "b", Size: leaf}}
	edges := []dag.Edge{{From: "child", To: "b"}, {From: "a", To: "ghost"}}

	pos := Layered(nodes, edges, DefaultLayeredConfig())
	assert.Equal(t, pos["a"].Y, pos["b"].Y)
}

func TestLayered_NoOverlapWithinRank(t *testing.T) {
	nodes := []LayerNode{
		{ID: "a", Size: Size{Width: 180, Height: 60}},
		{ID: "b", Size: Size{Width: 500, Height: 250}},
		{ID: "c", Size: Size{Width: 260, Height: 170}},
		{ID: "d", Size: Size{Width: 180, Height: 60}},
	}
	pos := Layered(nodes, nil, DefaultLayeredConfig())

	for i := 1; i < len(nodes); i++ {
		prev, cur := nodes[i-1], nodes[i]
		assert.GreaterOrEqual(t, pos[cur.ID].X, pos[prev.ID].X+prev.Size.Width, "%s overlaps %s", cur.ID, prev.ID)
	}
}

func TestLayered_Empty(t *testing.T) {
	assert.Empty(t, Layered(nil, nil, DefaultLayeredConfig()))
}
