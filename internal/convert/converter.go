// Package convert translates between the IR and the visual graph.
//
// The forward direction turns steps into nodes and typed edges, synthesizes
// compound containers for condition and loop steps, and computes layout.
// The reverse direction rebuilds an execution-ordered IR from an edited graph.
package convert

import (
	"fmt"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/layout"
)

// OriginTolerance is how far from (0,0) a top-level node may sit and still
// count as unplaced. Graphs with any node farther out keep their layout.
const OriginTolerance = 1.0

// Options configures a Converter.
type Options struct {
	// Reconstruct rebuilds branches and nested blocks from parent/child
	// nodes in the reverse direction. When false every non-callback node
	// becomes a top-level step.
	Reconstruct bool

	Layout  layout.Config
	Layered layout.LayeredConfig
}

// DefaultOptions returns the options used by the engine.
func DefaultOptions() Options {
	return Options{
		Reconstruct: true,
		Layout:      layout.DefaultConfig(),
		Layered:     layout.DefaultLayeredConfig(),
	}
}

// Converter holds compiled state shared by conversions. It is safe for
// concurrent use.
type Converter struct {
	opts Options
	refs *expressions.ReferenceFinder
}

// New creates a Converter.
func New(opts Options) (*Converter, error) {
	refs, err := expressions.NewReferenceFinder()
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	return &Converter{opts: opts, refs: refs}, nil
}

// Options returns the converter's configuration.
func (c *Converter) Options() Options {
	return c.opts
}
