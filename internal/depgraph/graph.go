// Package depgraph provides the directed dependency graph used by the plugin
// registry. Edges point from a plugin to the plugins it depends on and carry the
// index at which the dependency was declared, so neighbours can be visited in
// declaration order.
package depgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is returned when a traversal encounters a dependency cycle.
var ErrCycle = errors.New("dependency cycle detected")

type edge struct {
	to    string
	index int
}

// Graph is a directed graph keyed by node id. It is not safe for concurrent use.
type Graph struct {
	out map[string][]edge
	in  map[string]map[string]struct{}
}

// New creates an empty graph with room for n nodes.
func New(n int) *Graph {
	return &Graph{
		out: make(map[string][]edge, n),
		in:  make(map[string]map[string]struct{}, n),
	}
}

// AddNode adds id to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.out[id]; !ok {
		g.out[id] = nil
	}
	if _, ok := g.in[id]; !ok {
		g.in[id] = make(map[string]struct{})
	}
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.out[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.out)
}

// AddEdge adds an edge from -> to with the given declaration index, creating both
// nodes if needed. An existing edge between the same nodes has its index replaced.
func (g *Graph) AddEdge(from, to string, index int) {
	g.AddNode(from)
	g.AddNode(to)
	for i, e := range g.out[from] {
		if e.to == to {
			g.out[from][i].index = index
			return
		}
	}
	g.out[from] = append(g.out[from], edge{to: to, index: index})
	g.in[to][from] = struct{}{}
}

// RemoveEdge removes the edge from -> to and reports whether it existed.
func (g *Graph) RemoveEdge(from, to string) bool {
	edges := g.out[from]
	i := slices.IndexFunc(edges, func(e edge) bool { return e.to == to })
	if i < 0 {
		return false
	}
	g.out[from] = slices.Delete(edges, i, i+1)
	delete(g.in[to], from)
	return true
}

// RemoveNode removes id together with every edge touching it.
func (g *Graph) RemoveNode(id string) {
	if !g.HasNode(id) {
		return
	}
	for _, e := range g.out[id] {
		delete(g.in[e.to], id)
	}
	for from := range g.in[id] {
		g.out[from] = slices.DeleteFunc(g.out[from], func(e edge) bool { return e.to == id })
	}
	delete(g.out, id)
	delete(g.in, id)
}

// Neighbors returns the targets of the outgoing edges of id, ordered by their
// declaration index.
func (g *Graph) Neighbors(id string) []string {
	edges := slices.Clone(g.out[id])
	slices.SortStableFunc(edges, func(a, b edge) int { return a.index - b.index })
	result := make([]string, 0, len(edges))
	for _, e := range edges {
		result = append(result, e.to)
	}
	return result
}

// Incoming returns the sources of the incoming edges of id, sorted.
func (g *Graph) Incoming(id string) []string {
	result := make([]string, 0, len(g.in[id]))
	for from := range g.in[id] {
		result = append(result, from)
	}
	slices.Sort(result)
	return result
}

// HasIncoming reports whether any node has an edge to id.
func (g *Graph) HasIncoming(id string) bool {
	return len(g.in[id]) > 0
}

// HasOutgoing reports whether id has any outgoing edge.
func (g *Graph) HasOutgoing(id string) bool {
	return len(g.out[id]) > 0
}

// IsCyclic reports whether the graph contains a cycle.
func (g *Graph) IsCyclic() bool {
	return g.FindCycle() != nil
}

// FindCycle returns the nodes of one cycle, starting and ending with the same
// node, or nil when the graph is acyclic. Nodes are visited in sorted order so the
// reported cycle is deterministic.
func (g *Graph) FindCycle() []string {
	visited := make(map[string]bool, len(g.out))
	onStack := make(map[string]bool)
	var path []string

	var visit func(string) []string
	visit = func(node string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.Neighbors(node) {
			if onStack[next] {
				start := slices.Index(path, next)
				cycle := slices.Clone(path[start:])
				return append(cycle, next)
			}
			if !visited[next] {
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return nil
	}

	nodes := make([]string, 0, len(g.out))
	for id := range g.out {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if !visited[node] {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopoOrderFrom returns id and everything reachable from it, dependencies first.
// Dependencies are visited in declaration order.
func (g *Graph) TopoOrderFrom(id string) ([]string, error) {
	if !g.HasNode(id) {
		return nil, nil
	}

	var result []string
	visited := make(map[string]bool)
	temp := make(map[string]bool)
	var stack []string

	var visit func(string) error
	visit = func(node string) error {
		if temp[node] {
			start := slices.Index(stack, node)
			cycle := append(slices.Clone(stack[start:]), node)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
		if visited[node] {
			return nil
		}
		temp[node] = true
		stack = append(stack, node)

		for _, dep := range g.Neighbors(node) {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		temp[node] = false
		visited[node] = true
		result = append(result, node)
		return nil
	}

	if err := visit(id); err != nil {
		return nil, err
	}
	return result, nil
}
