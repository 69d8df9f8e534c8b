package pipeline

import (
	"container/heap"
	"fmt"
	"strings"
)

// Graph is a validated, acyclic set of stages. Construct with NewGraph;
// a Graph is immutable after construction and safe to Run repeatedly.
type Graph struct {
	stages   []Stage
	index    map[string]int
	outgoing [][]int // dependents, by stage index
	incoming [][]int // dependencies, by stage index
	indeg    []int
}

// NewGraph validates the stage set and builds the dependency graph.
// Duplicate names, unknown or self dependencies, missing functions, and
// cycles are all construction errors: nothing executes on a bad graph.
func NewGraph(stages ...Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("graph requires at least one stage")
	}

	g := &Graph{
		stages:   append([]Stage(nil), stages...),
		index:    make(map[string]int, len(stages)),
		outgoing: make([][]int, len(stages)),
		incoming: make([][]int, len(stages)),
		indeg:    make([]int, len(stages)),
	}

	for i, s := range g.stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d has empty name", i)
		}
		if s.Fn == nil {
			return nil, fmt.Errorf("stage %q has no function", s.Name)
		}
		if _, exists := g.index[s.Name]; exists {
			return nil, fmt.Errorf("duplicate stage name: %s", s.Name)
		}
		g.index[s.Name] = i
	}

	for i, s := range g.stages {
		for _, dep := range s.Deps {
			j, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.Name, dep)
			}
			if j == i {
				return nil, fmt.Errorf("stage %q depends on itself", s.Name)
			}
			g.outgoing[j] = append(g.outgoing[j], i)
			g.incoming[i] = append(g.incoming[i], j)
			g.indeg[i]++
		}
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// Stages returns the stage names in definition order.
func (g *Graph) Stages() []string {
	out := make([]string, len(g.stages))
	for i, s := range g.stages {
		out[i] = s.Name
	}
	return out
}

// TopoOrder returns a deterministic topological ordering of stage names.
// Ties between ready stages break by definition order.
func (g *Graph) TopoOrder() []string {
	order := g.topoOrderIndices()
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = g.stages[idx].Name
	}
	return out
}

// validateAcyclic proves the graph has no cycles via Kahn's algorithm,
// extracting one deterministic cycle witness for the error message.
func (g *Graph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.stages) {
		return nil
	}
	cycle := g.findCycle()
	return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (g *Graph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle walks the graph depth-first and reconstructs one cycle path.
// Returns a single stable witness, not every cycle.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.stages))
	parent := make([]int, len(g.stages))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// Back-edge u -> v closes the cycle v ... u -> v.
				cycle = append(cycle, v)
				cur := u
				for cur != -1 && cur != v {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.stages {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.stages[cycle[i]].Name)
	}
	return out
}
