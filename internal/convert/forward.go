package convert

import (
	"fmt"
	"math"
	"strings"

	"github.com/rendis/flowgraph/internal/dag"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/pkg/schema"
)

// ToGraph converts ir into a visual graph.
//
// Id uniqueness and dependency ordering are checked before any node is
// built, so graph errors surface ahead of layout. Container sizing always
// runs; top-level layering runs only when no top-level node has been placed.
func (c *Converter) ToGraph(ir *schema.WorkflowIR) (*schema.Graph, error) {
	if ir == nil {
		return nil, schema.NewSchemaError("/", "workflow is nil")
	}
	if err := dag.ValidateUniqueStepIDs(ir.Steps); err != nil {
		return nil, err
	}
	if _, err := dag.Order(ir.Steps); err != nil {
		return nil, err
	}

	b := &graphBuilder{
		cfg:   c.opts.Layout,
		graph: &schema.Graph{Nodes: []schema.Node{}, Edges: []schema.Edge{}},
		paths: make(map[string]string),
	}

	top := make([]layout.LayerNode, 0, len(ir.Steps)+len(ir.Callbacks))
	topIdx := make([]int, 0, cap(top))
	for i := range ir.Steps {
		step := &ir.Steps[i]
		idx := len(b.graph.Nodes)
		size, err := b.addStep(step, step.ID, "", "", fmt.Sprintf("steps[%d]", i))
		if err != nil {
			return nil, err
		}
		if step.Position != nil {
			b.graph.Nodes[idx].Position = *step.Position
		}
		top = append(top, layout.LayerNode{ID: step.ID, Size: size})
		topIdx = append(topIdx, idx)
	}
	deps := b.addDependencies(ir.Steps, identityIDs(ir.Steps))

	for i := range ir.Callbacks {
		cb := &ir.Callbacks[i]
		idx, err := b.addCallback(cb, fmt.Sprintf("callbacks[%d]", i))
		if err != nil {
			return nil, err
		}
		if err := b.linkCallback(c, cb); err != nil {
			return nil, err
		}
		top = append(top, layout.LayerNode{ID: cb.ID, Size: c.opts.Layout.LeafSize()})
		topIdx = append(topIdx, idx)
	}

	if !anyPlaced(b.graph.Nodes, topIdx) {
		positions := layout.Layered(top, deps, c.opts.Layered)
		for _, idx := range topIdx {
			p := positions[b.graph.Nodes[idx].ID]
			b.graph.Nodes[idx].Position = schema.Position{X: p.X, Y: p.Y}
		}
	}
	return b.graph, nil
}

// graphBuilder accumulates the nodes and edges of one forward conversion.
type graphBuilder struct {
	cfg    layout.Config
	graph  *schema.Graph
	paths  map[string]string // node id -> IR location, for collision reports
	leaves []leafNode
}

type leafNode struct {
	nodeID string
	config map[string]any
}

func (b *graphBuilder) addNode(n schema.Node, path string) (int, error) {
	if prev, taken := b.paths[n.ID]; taken {
		return 0, &schema.DuplicateStepIDError{ID: n.ID, Paths: []string{prev, path}}
	}
	b.paths[n.ID] = path
	b.graph.Nodes = append(b.graph.Nodes, n)
	return len(b.graph.Nodes) - 1, nil
}

func (b *graphBuilder) addEdge(e schema.Edge) {
	b.graph.Edges = append(b.graph.Edges, e)
}

// addStep adds the node for step and, recursively, its children. It returns
// the node footprint, which for containers depends on the children.
func (b *graphBuilder) addStep(step *schema.StepIR, nodeID, parentID, branch, path string) (layout.Size, error) {
	node := schema.Node{
		ID:   nodeID,
		Kind: nodeKind(step),
		Data: stepData(step),
	}
	if parentID != "" {
		node.ParentID = parentID
		node.ContainedInParent = true
		node.Data[schema.DataBranch] = branch
	}
	if step.Branches != nil && len(step.NestedBlocks) > 0 {
		return layout.Size{}, schema.NewSchemaError(pointer(path), "step "+step.ID+" has both branches and nested_blocks")
	}
	idx, err := b.addNode(node, path)
	if err != nil {
		return layout.Size{}, err
	}

	switch {
	case step.Branches != nil:
		thenIDs, thenSizes, err := b.addChildren(step.Branches.Then, nodeID, schema.BranchThen, path+".branches.then")
		if err != nil {
			return layout.Size{}, err
		}
		elseIDs, elseSizes, err := b.addChildren(step.Branches.Else, nodeID, schema.BranchElse, path+".branches.else")
		if err != nil {
			return layout.Size{}, err
		}

		block := b.cfg.SizeCondition(thenSizes, elseSizes)
		b.place(thenIDs, block.Slots[0])
		b.place(elseIDs, block.Slots[1])
		b.addBranchEdge(nodeID, thenIDs, schema.HandleThen)
		b.addBranchEdge(nodeID, elseIDs, schema.HandleElse)

		data := b.graph.Nodes[idx].Data
		data[schema.DataHasThen] = len(thenIDs) > 0
		data[schema.DataHasElse] = len(elseIDs) > 0
		data[schema.DataThenCount] = len(thenIDs)
		data[schema.DataElseCount] = len(elseIDs)
		data[schema.DataWidth] = block.Size.Width
		data[schema.DataHeight] = block.Size.Height
		return block.Size, nil

	case len(step.NestedBlocks) > 0:
		ids, sizes, err := b.addChildren(step.NestedBlocks, nodeID, schema.BranchLoop, path+".nested_blocks")
		if err != nil {
			return layout.Size{}, err
		}

		block := b.cfg.SizeLoop(sizes)
		b.place(ids, block.Slots[0])
		b.addLoopEdges(nodeID, ids)

		data := b.graph.Nodes[idx].Data
		data[schema.DataChildCount] = len(ids)
		data[schema.DataWidth] = block.Size.Width
		data[schema.DataHeight] = block.Size.Height
		return block.Size, nil

	default:
		b.leaves = append(b.leaves, leafNode{nodeID: nodeID, config: step.Config})
		return b.cfg.LeafSize(), nil
	}
}

// addChildren adds one child list under parentID and returns the child node
// indexes and footprints in list order. depends_on inside the list must name
// siblings and be acyclic, same as at top level.
func (b *graphBuilder) addChildren(steps []schema.StepIR, parentID, branch, path string) ([]int, []layout.Size, error) {
	if _, err := dag.Order(steps); err != nil {
		return nil, nil, err
	}
	idxs := make([]int, 0, len(steps))
	sizes := make([]layout.Size, 0, len(steps))
	ids := make(map[string]string, len(steps))
	for i := range steps {
		child := &steps[i]
		childID := ChildNodeID(parentID, branch, child.ID)
		idx := len(b.graph.Nodes)
		size, err := b.addStep(child, childID, parentID, branch, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, nil, err
		}
		idxs = append(idxs, idx)
		sizes = append(sizes, size)
		ids[child.ID] = childID
	}
	b.addDependencies(steps, ids)
	return idxs, sizes, nil
}

func (b *graphBuilder) place(idxs []int, slots []layout.Point) {
	for i, idx := range idxs {
		b.graph.Nodes[idx].Position = schema.Position{X: slots[i].X, Y: slots[i].Y}
	}
}

// addBranchEdge links the container to the first child of a branch. Later
// children are ordered by position alone.
func (b *graphBuilder) addBranchEdge(parentID string, idxs []int, handle string) {
	if len(idxs) == 0 {
		return
	}
	first := b.graph.Nodes[idxs[0]].ID
	b.addEdge(schema.Edge{
		ID:           structuralEdgeID(parentID, handle, first),
		Source:       parentID,
		Target:       first,
		Kind:         schema.EdgeBranch,
		Label:        handle,
		SourceHandle: handle,
	})
}

// addLoopEdges chains the loop body: entry edge, one edge per consecutive
// pair, and an animated back-edge into the container's loop-back handle.
// None of them are dependency edges, so ordering never sees the back-edge.
func (b *graphBuilder) addLoopEdges(parentID string, idxs []int) {
	if len(idxs) == 0 {
		return
	}
	first := b.graph.Nodes[idxs[0]].ID
	b.addEdge(schema.Edge{
		ID:           structuralEdgeID(parentID, schema.HandleLoop, first),
		Source:       parentID,
		Target:       first,
		Kind:         schema.EdgeLoop,
		SourceHandle: schema.HandleLoop,
	})
	for i := 1; i < len(idxs); i++ {
		prev, cur := b.graph.Nodes[idxs[i-1]].ID, b.graph.Nodes[idxs[i]].ID
		b.addEdge(schema.Edge{
			ID:     structuralEdgeID(prev, schema.HandleLoop, cur),
			Source: prev,
			Target: cur,
			Kind:   schema.EdgeLoop,
		})
	}
	last := b.graph.Nodes[idxs[len(idxs)-1]].ID
	b.addEdge(schema.Edge{
		ID:           structuralEdgeID(last, schema.HandleLoopBack, parentID),
		Source:       last,
		Target:       parentID,
		Kind:         schema.EdgeLoop,
		TargetHandle: schema.HandleLoopBack,
		Animated:     true,
	})
}

// addDependencies emits one dependency edge per distinct depends_on entry of
// steps. nodeIDs maps step ids of the scope to their node ids; callers have
// already checked that every entry resolves. The edges are returned for
// layering.
func (b *graphBuilder) addDependencies(steps []schema.StepIR, nodeIDs map[string]string) []dag.Edge {
	var out []dag.Edge
	for i := range steps {
		target, ok := nodeIDs[steps[i].ID]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(steps[i].DependsOn))
		for _, dep := range steps[i].DependsOn {
			source, ok := nodeIDs[dep]
			if !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			b.addEdge(schema.Edge{
				ID:     schema.DependencyEdgeID(source, target),
				Source: source,
				Target: target,
				Kind:   schema.EdgeDependency,
			})
			out = append(out, dag.Edge{From: source, To: target})
		}
	}
	return out
}

func (b *graphBuilder) addCallback(cb *schema.CallbackIR, path string) (int, error) {
	data := map[string]any{
		schema.DataLabel:  labelOf(cb.Name, cb.ID),
		schema.DataName:   cb.Name,
		schema.DataType:   cb.Type,
		schema.DataConfig: copyConfig(cb.Config),
		schema.DataStepID: cb.ID,
	}
	if cb.Steps != nil {
		data[schema.DataSteps] = append([]schema.StepIR(nil), cb.Steps...)
	}
	node := schema.Node{ID: cb.ID, Kind: schema.NodeKindCallback, Data: data}
	if cb.Position != nil {
		node.Position = *cb.Position
	}
	return b.addNode(node, path)
}

// linkCallback adds a callback edge from every leaf whose config mentions
// the callback by name.
func (b *graphBuilder) linkCallback(c *Converter, cb *schema.CallbackIR) error {
	for _, leaf := range b.leaves {
		found, err := c.refs.References(leaf.config, cb.Name)
		if err != nil {
			return fmt.Errorf("convert: link callback %s: %w", cb.ID, err)
		}
		if !found {
			continue
		}
		b.addEdge(schema.Edge{
			ID:     structuralEdgeID(leaf.nodeID, string(schema.EdgeCallback), cb.ID),
			Source: leaf.nodeID,
			Target: cb.ID,
			Kind:   schema.EdgeCallback,
		})
	}
	return nil
}

// ChildNodeID is the node id of a child step inside a container.
func ChildNodeID(parentID, branch, childID string) string {
	return parentID + "_" + branch + "_" + childID
}

func structuralEdgeID(source, handle, target string) string {
	return source + "-" + handle + "->" + target
}

func nodeKind(step *schema.StepIR) schema.NodeKind {
	switch {
	case step.Branches != nil:
		return schema.NodeKindCompoundCondition
	case len(step.NestedBlocks) > 0 && step.Kind() == schema.KindMatch:
		return schema.NodeKindCompoundMatch
	case len(step.NestedBlocks) > 0:
		return schema.NodeKindCompoundLoop
	case step.Type == "":
		return schema.NodeKind(schema.KindOther)
	default:
		return schema.NodeKind(step.Type)
	}
}

func stepData(step *schema.StepIR) map[string]any {
	return map[string]any{
		schema.DataLabel:  labelOf(step.Name, step.ID),
		schema.DataName:   step.Name,
		schema.DataType:   step.Type,
		schema.DataConfig: copyConfig(step.Config),
		schema.DataStepID: step.ID,
	}
}

func labelOf(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func copyConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

// pointer turns a builder location such as steps[0].branches.then[1] into
// a JSON pointer.
func pointer(path string) string {
	r := strings.NewReplacer("[", "/", "]", "", ".", "/")
	return "/" + r.Replace(path)
}

func identityIDs(steps []schema.StepIR) map[string]string {
	ids := make(map[string]string, len(steps))
	for i := range steps {
		ids[steps[i].ID] = steps[i].ID
	}
	return ids
}

// anyPlaced reports whether a top-level node sits away from the origin.
func anyPlaced(nodes []schema.Node, idxs []int) bool {
	for _, idx := range idxs {
		p := nodes[idx].Position
		if math.Abs(p.X) > OriginTolerance || math.Abs(p.Y) > OriginTolerance {
			return true
		}
	}
	return false
}
