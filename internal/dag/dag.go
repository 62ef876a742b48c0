// Package dag orders workflow steps by their depends_on relations.
//
// Only top-level steps are sorted here. Steps inside branches and loop bodies
// are ordered structurally and never reach the sorter.
package dag

import (
	"container/heap"
	"fmt"

	"github.com/rendis/flowgraph/pkg/schema"
)

// Sort returns the steps in a stable topological order: every step appears
// after all of its dependencies, and ties are broken by original position.
// The input slice is not modified.
//
// Dangling references are reported before cycle detection runs.
func Sort(steps []schema.StepIR) ([]schema.StepIR, error) {
	order, err := Order(steps)
	if err != nil {
		return nil, err
	}
	sorted := make([]schema.StepIR, len(order))
	for i, idx := range order {
		sorted[i] = steps[idx]
	}
	return sorted, nil
}

// Order is like Sort but returns indexes into steps.
func Order(steps []schema.StepIR) ([]int, error) {
	index := make(map[string]int, len(steps))
	for i := range steps {
		id := steps[i].ID
		if prev, exists := index[id]; exists {
			return nil, &schema.DuplicateStepIDError{
				ID:    id,
				Paths: []string{fmt.Sprintf("steps[%d]", prev), fmt.Sprintf("steps[%d]", i)},
			}
		}
		index[id] = i
	}

	// deps[i] = indexes of the steps i depends on, reverse[j] = dependents of j.
	deps := make([][]int, len(steps))
	reverse := make([][]int, len(steps))
	for i := range steps {
		seen := make(map[int]bool, len(steps[i].DependsOn))
		for _, dep := range steps[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, &schema.DanglingDependencyError{StepID: steps[i].ID, Dependency: dep}
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			deps[i] = append(deps[i], j)
			reverse[j] = append(reverse[j], i)
		}
	}

	// Kahn's algorithm with a min-heap on the original index.
	inDegree := make([]int, len(steps))
	ready := &indexHeap{}
	for i := range steps {
		inDegree[i] = len(deps[i])
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, len(steps))
	for ready.Len() > 0 {
		node := heap.Pop(ready).(int)
		order = append(order, node)
		for _, dependent := range reverse[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, &schema.CycleError{Cycle: findCycle(steps, deps, inDegree)}
	}
	return order, nil
}

// findCycle walks unsorted in-edges from the first stuck step until a step
// repeats, and returns the repeating part of the walk.
// Every step left with a positive in-degree has at least one unsorted dependency.
func findCycle(steps []schema.StepIR, deps [][]int, inDegree []int) []string {
	start := -1
	for i, d := range inDegree {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	position := make(map[int]int)
	var walk []int
	for cur := start; ; {
		if at, seen := position[cur]; seen {
			walk = walk[at:]
			break
		}
		position[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, dep := range deps[cur] {
			if inDegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next < 0 {
			// Unreachable for a consistent in-degree table.
			break
		}
		cur = next
	}

	cycle := make([]string, len(walk))
	for i, idx := range walk {
		cycle[i] = steps[idx].ID
	}
	return cycle
}

// indexHeap is a min-heap of step indexes.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
