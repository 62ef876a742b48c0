package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rendis/flowgraph/internal/dag"
	"github.com/rendis/flowgraph/pkg/schema"
)

// FromGraph rebuilds an execution-ordered IR from a visual graph.
//
// depends_on comes from dependency edges only. Positions are rounded to
// whole pixels. With Reconstruct set, child nodes are folded back into their
// container's branches or nested blocks, ordered top to bottom.
func (c *Converter) FromGraph(g *schema.Graph, trigger schema.TriggerIR) (*schema.WorkflowIR, error) {
	if g == nil {
		return nil, schema.NewSchemaError("/", "graph is nil")
	}

	r, err := newRebuilder(g, c.opts.Reconstruct)
	if err != nil {
		return nil, err
	}

	var steps []schema.StepIR
	if c.opts.Reconstruct {
		steps, err = r.tree()
	} else {
		steps, err = r.flat()
	}
	if err != nil {
		return nil, err
	}
	if err := r.checkScopes(); err != nil {
		return nil, err
	}

	callbacks, err := r.callbacks()
	if err != nil {
		return nil, err
	}

	if err := dag.ValidateUniqueStepIDs(steps); err != nil {
		return nil, err
	}
	sorted, err := dag.Sort(steps)
	if err != nil {
		return nil, err
	}

	return &schema.WorkflowIR{
		Version:   schema.CurrentVersion,
		Trigger:   schema.TriggerIR{Type: trigger.Type, Config: copyConfig(trigger.Config)},
		Steps:     sorted,
		Callbacks: callbacks,
	}, nil
}

// rebuilder holds the indexes of one reverse conversion.
type rebuilder struct {
	g           *schema.Graph
	reconstruct bool
	byID        map[string]int
	children    map[string][]int    // parent node id -> child node indexes
	depsIn      map[string][]string // target node id -> distinct dependency sources
	scopeOf     map[string]string   // node id -> container node id of its step list
	placed      []bool
}

func newRebuilder(g *schema.Graph, reconstruct bool) (*rebuilder, error) {
	r := &rebuilder{
		g:           g,
		reconstruct: reconstruct,
		byID:        make(map[string]int, len(g.Nodes)),
		children:    make(map[string][]int),
		depsIn:      make(map[string][]string),
		scopeOf:     make(map[string]string, len(g.Nodes)),
		placed:      make([]bool, len(g.Nodes)),
	}

	result := &schema.ValidationResult{}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if prev, dup := r.byID[n.ID]; dup {
			return nil, &schema.DuplicateStepIDError{
				ID:    n.ID,
				Paths: []string{fmt.Sprintf("nodes[%d]", prev), fmt.Sprintf("nodes[%d]", i)},
			}
		}
		r.byID[n.ID] = i
		if n.Kind == "" {
			result.AddError(fmt.Sprintf("/nodes/%d/kind", i), schema.ErrCodeSchema, "node kind is required")
		}
	}
	if err := result.ToError(); err != nil {
		return nil, err
	}

	if reconstruct {
		for i := range g.Nodes {
			n := &g.Nodes[i]
			if n.ParentID == "" || n.Kind == schema.NodeKindCallback {
				continue
			}
			if _, ok := r.byID[n.ParentID]; !ok {
				result.AddError(fmt.Sprintf("/nodes/%d/parentId", i), schema.ErrCodeSchema,
					fmt.Sprintf("parent node %q does not exist", n.ParentID))
				continue
			}
			r.children[n.ParentID] = append(r.children[n.ParentID], i)
		}
		if err := result.ToError(); err != nil {
			return nil, err
		}
	}

	for _, e := range g.Edges {
		if e.Kind != schema.EdgeDependency {
			continue
		}
		_, srcOK := r.byID[e.Source]
		_, dstOK := r.byID[e.Target]
		if !srcOK || !dstOK {
			return nil, &schema.DanglingDependencyError{StepID: e.Target, Dependency: e.Source}
		}
		if !containsString(r.depsIn[e.Target], e.Source) {
			r.depsIn[e.Target] = append(r.depsIn[e.Target], e.Source)
		}
	}
	return r, nil
}

// tree builds top-level steps from parentless nodes and folds every child
// node into its container.
func (r *rebuilder) tree() ([]schema.StepIR, error) {
	var roots []int
	for i := range r.g.Nodes {
		n := &r.g.Nodes[i]
		if n.ParentID == "" && n.Kind != schema.NodeKindCallback {
			roots = append(roots, i)
		}
	}

	steps, err := r.scope(roots, "")
	if err != nil {
		return nil, err
	}

	for i := range r.g.Nodes {
		n := &r.g.Nodes[i]
		if n.Kind != schema.NodeKindCallback && !r.placed[i] {
			return nil, schema.NewSchemaError(fmt.Sprintf("/nodes/%d/parentId", i),
				"parent chain of node "+n.ID+" does not reach a top-level node")
		}
	}
	return steps, nil
}

// flat turns every non-callback node into a top-level step keyed by node id.
func (r *rebuilder) flat() ([]schema.StepIR, error) {
	var idxs []int
	for i := range r.g.Nodes {
		if r.g.Nodes[i].Kind != schema.NodeKindCallback {
			idxs = append(idxs, i)
		}
	}
	return r.scope(idxs, "")
}

// scope builds the steps of one sibling list and wires depends_on between
// them. parentID is the container node id, or "" at top level.
func (r *rebuilder) scope(idxs []int, parentID string) ([]schema.StepIR, error) {
	steps := make([]schema.StepIR, 0, len(idxs))
	stepIDs := make(map[string]string, len(idxs)) // node id -> step id
	for _, i := range idxs {
		step, err := r.build(i, parentID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		stepIDs[r.g.Nodes[i].ID] = step.ID
		r.scopeOf[r.g.Nodes[i].ID] = parentID
	}

	for k, i := range idxs {
		for _, src := range r.depsIn[r.g.Nodes[i].ID] {
			if dep, ok := stepIDs[src]; ok && !containsString(steps[k].DependsOn, dep) {
				steps[k].DependsOn = append(steps[k].DependsOn, dep)
			}
		}
	}
	if parentID != "" {
		if _, err := dag.Order(steps); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

// checkScopes rejects dependency edges whose endpoints did not land in the
// same step list. Callback nodes belong to no step list.
func (r *rebuilder) checkScopes() error {
	for i, e := range r.g.Edges {
		if e.Kind != schema.EdgeDependency {
			continue
		}
		src, srcOK := r.scopeOf[e.Source]
		dst, dstOK := r.scopeOf[e.Target]
		if srcOK && dstOK && src == dst {
			continue
		}
		return schema.NewSchemaError(fmt.Sprintf("/edges/%d", i),
			fmt.Sprintf("dependency %s -> %s crosses containers", e.Source, e.Target))
	}
	return nil
}

// build turns node i and, when reconstructing, its descendants into a step.
func (r *rebuilder) build(i int, parentID string) (schema.StepIR, error) {
	r.placed[i] = true
	n := &r.g.Nodes[i]

	step, err := r.nodeStep(i, parentID)
	if err != nil {
		return schema.StepIR{}, err
	}
	if !r.reconstruct {
		return step, nil
	}

	kids := r.sortedChildren(n.ID)
	if n.Kind != schema.NodeKindCompoundCondition {
		if len(kids) > 0 {
			if step.NestedBlocks, err = r.scope(kids, n.ID); err != nil {
				return schema.StepIR{}, err
			}
		}
		return step, nil
	}

	var thenIdx, elseIdx []int
	for _, k := range kids {
		switch branchOf(&r.g.Nodes[k], n.ID) {
		case schema.BranchThen:
			thenIdx = append(thenIdx, k)
		case schema.BranchElse:
			elseIdx = append(elseIdx, k)
		default:
			return schema.StepIR{}, schema.NewSchemaError(fmt.Sprintf("/nodes/%d/data/branch", k),
				"cannot tell which branch of "+n.ID+" node "+r.g.Nodes[k].ID+" belongs to")
		}
	}
	step.Branches = &schema.Branches{}
	if len(thenIdx) > 0 {
		if step.Branches.Then, err = r.scope(thenIdx, n.ID); err != nil {
			return schema.StepIR{}, err
		}
	}
	if len(elseIdx) > 0 {
		if step.Branches.Else, err = r.scope(elseIdx, n.ID); err != nil {
			return schema.StepIR{}, err
		}
	}
	return step, nil
}

// sortedChildren returns the children of a container top to bottom, then
// left to right, keeping node order for ties.
func (r *rebuilder) sortedChildren(parentID string) []int {
	kids := append([]int(nil), r.children[parentID]...)
	sort.SliceStable(kids, func(a, b int) bool {
		pa, pb := r.g.Nodes[kids[a]].Position, r.g.Nodes[kids[b]].Position
		if pa.Y != pb.Y {
			return pa.Y < pb.Y
		}
		return pa.X < pb.X
	})
	return kids
}

// nodeStep maps the node's own fields onto a step, without children.
func (r *rebuilder) nodeStep(i int, parentID string) (schema.StepIR, error) {
	n := &r.g.Nodes[i]
	cfg, err := nodeConfig(n, i)
	if err != nil {
		return schema.StepIR{}, err
	}
	return schema.StepIR{
		ID:       r.stepID(n, parentID),
		Name:     nodeName(n),
		Type:     nodeType(n),
		Config:   cfg,
		Position: roundPosition(n.Position),
	}, nil
}

// stepID prefers the stepId carried in node data. Otherwise reconstructed
// children strip their container prefix and everything else uses the node id.
func (r *rebuilder) stepID(n *schema.Node, parentID string) string {
	if r.reconstruct {
		if id, ok := n.Data[schema.DataStepID].(string); ok && id != "" {
			return id
		}
		if parentID != "" {
			for _, marker := range []string{schema.BranchThen, schema.BranchElse, schema.BranchLoop} {
				if rest, ok := strings.CutPrefix(n.ID, parentID+"_"+marker+"_"); ok && rest != "" {
					return rest
				}
			}
		}
	}
	return n.ID
}

// branchOf reads the branch of a condition child from its data, falling
// back to the marker in its id.
func branchOf(n *schema.Node, parentID string) string {
	if b, ok := n.Data[schema.DataBranch].(string); ok && (b == schema.BranchThen || b == schema.BranchElse) {
		return b
	}
	for _, marker := range []string{schema.BranchThen, schema.BranchElse} {
		if strings.HasPrefix(n.ID, parentID+"_"+marker+"_") {
			return marker
		}
	}
	return ""
}

func (r *rebuilder) callbacks() ([]schema.CallbackIR, error) {
	var out []schema.CallbackIR
	for i := range r.g.Nodes {
		n := &r.g.Nodes[i]
		if n.Kind != schema.NodeKindCallback {
			continue
		}
		cfg, err := nodeConfig(n, i)
		if err != nil {
			return nil, err
		}
		steps, err := decodeSteps(n.Data[schema.DataSteps])
		if err != nil {
			return nil, schema.NewSchemaError(fmt.Sprintf("/nodes/%d/data/steps", i), err.Error())
		}
		if err := dag.ValidateUniqueStepIDs(steps); err != nil {
			return nil, err
		}
		out = append(out, schema.CallbackIR{
			ID:       n.ID,
			Name:     nodeName(n),
			Type:     nodeType(n),
			Config:   cfg,
			Steps:    steps,
			Position: roundPosition(n.Position),
		})
	}
	return out, nil
}

func nodeName(n *schema.Node) string {
	if name, ok := n.Data[schema.DataName].(string); ok {
		return name
	}
	label, _ := n.Data[schema.DataLabel].(string)
	return label
}

// nodeType prefers the step type carried in data; compound kinds map back to
// their step kind and any other kind is the step type.
func nodeType(n *schema.Node) string {
	if t, ok := n.Data[schema.DataType].(string); ok && t != "" {
		return t
	}
	switch n.Kind {
	case schema.NodeKindCompoundCondition:
		return string(schema.KindCondition)
	case schema.NodeKindCompoundLoop:
		return string(schema.KindLoop)
	case schema.NodeKindCompoundMatch:
		return string(schema.KindMatch)
	default:
		return string(n.Kind)
	}
}

func nodeConfig(n *schema.Node, i int) (map[string]any, error) {
	raw, present := n.Data[schema.DataConfig]
	if !present || raw == nil {
		return map[string]any{}, nil
	}
	cfg, ok := raw.(map[string]any)
	if !ok {
		return nil, schema.NewSchemaError(fmt.Sprintf("/nodes/%d/data/config", i), "config must be an object")
	}
	return copyConfig(cfg), nil
}

// decodeSteps accepts the callback step list either as IR values or in the
// generic form a JSON decoder produces.
func decodeSteps(v any) ([]schema.StepIR, error) {
	switch steps := v.(type) {
	case nil:
		return nil, nil
	case []schema.StepIR:
		return append([]schema.StepIR(nil), steps...), nil
	default:
		b, err := json.Marshal(steps)
		if err != nil {
			return nil, fmt.Errorf("callback steps are not encodable: %w", err)
		}
		var out []schema.StepIR
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("callback steps are malformed: %w", err)
		}
		return out, nil
	}
}

func roundPosition(p schema.Position) *schema.Position {
	return &schema.Position{X: math.Round(p.X), Y: math.Round(p.Y)}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
