// Package layout computes canvas geometry: child slots and footprints of
// condition and loop containers, and rank-based placement of top-level nodes.
// It knows nothing about steps or edges beyond sizes and ids.
package layout

// Size is a node footprint in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Point is a top-left corner in pixels.
type Point struct {
	X float64
	Y float64
}

// Block is a sized container. Slots[c][i] is the top-left corner of child i
// in column c, relative to the container's own top-left corner.
type Block struct {
	Size  Size
	Slots [][]Point
}

// Config holds the container geometry constants.
type Config struct {
	NodeWidth  float64 // leaf footprint
	NodeHeight float64

	Header    float64 // title band above the first row
	Padding   float64 // inner margin on every side
	RowHeight float64 // minimum row height
	RowGap    float64 // space kept below the tallest child of a row

	ColumnWidth     float64 // each condition column
	ColumnGap       float64 // between the then and else columns
	LoopColumnWidth float64 // the single loop column
}

// DefaultConfig returns the geometry used by the converter.
func DefaultConfig() Config {
	return Config{
		NodeWidth:       180,
		NodeHeight:      60,
		Header:          50,
		Padding:         20,
		RowHeight:       80,
		RowGap:          20,
		ColumnWidth:     220,
		ColumnGap:       20,
		LoopColumnWidth: 220,
	}
}

// LeafSize is the footprint of a node without children.
func (c Config) LeafSize() Size {
	return Size{Width: c.NodeWidth, Height: c.NodeHeight}
}

// SizeCondition lays the then children in the left column and the else
// children in the right one. Both columns share row heights so asymmetric
// branches stay aligned, and an empty condition still reserves one row.
func (c Config) SizeCondition(then, els []Size) Block {
	rows := max(len(then), len(els), 1)
	heights := make([]float64, rows)
	for r := range heights {
		tallest := 0.0
		if r < len(then) {
			tallest = max(tallest, then[r].Height)
		}
		if r < len(els) {
			tallest = max(tallest, els[r].Height)
		}
		heights[r] = max(c.RowHeight, tallest+c.RowGap)
	}

	thenX := c.Padding
	elseX := c.Padding + c.ColumnWidth + c.ColumnGap
	return Block{
		Size: Size{
			Width:  2*c.Padding + 2*c.ColumnWidth + c.ColumnGap,
			Height: c.Header + sum(heights) + 2*c.Padding,
		},
		Slots: [][]Point{
			c.column(then, thenX, c.ColumnWidth, heights),
			c.column(els, elseX, c.ColumnWidth, heights),
		},
	}
}

// SizeLoop stacks the children in one column. The width does not depend on
// the children; the height grows with their count.
func (c Config) SizeLoop(children []Size) Block {
	rows := max(len(children), 1)
	heights := make([]float64, rows)
	for r := range heights {
		tallest := 0.0
		if r < len(children) {
			tallest = children[r].Height
		}
		heights[r] = max(c.RowHeight, tallest+c.RowGap)
	}

	return Block{
		Size: Size{
			Width:  2*c.Padding + c.LoopColumnWidth,
			Height: c.Header + sum(heights) + 2*c.Padding,
		},
		Slots: [][]Point{c.column(children, c.Padding, c.LoopColumnWidth, heights)},
	}
}

// column centres each child horizontally in its column and places it at the
// top of its row.
func (c Config) column(children []Size, left, width float64, heights []float64) []Point {
	slots := make([]Point, len(children))
	y := c.Header + c.Padding
	for i, child := range children {
		slots[i] = Point{X: left + max(0, (width-child.Width)/2), Y: y}
		y += heights[i]
	}
	return slots
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
