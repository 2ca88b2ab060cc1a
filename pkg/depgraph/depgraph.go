// Package depgraph validates agent dependency declarations and produces a
// dependency-ordered initialization sequence (spec §4.B).
package depgraph

import (
	"sort"

	omniErrors "github.com/omnicore/agentrt/pkg/errors"
)

// Node is the minimal shape depgraph needs from an agent's metadata.
type Node struct {
	ID           string
	Dependencies []string
}

// Graph holds nodes by id and answers dependency/dependent/cycle/order
// queries over them.
type Graph struct {
	nodes map[string]Node
}

func New() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// Add registers a node. Re-adding the same id overwrites its dependencies.
func (g *Graph) Add(n Node) {
	g.nodes[n.ID] = n
}

// Dependencies returns the declared dependency ids of node id, regardless of
// whether they currently resolve.
func (g *Graph) Dependencies(id string) []string {
	if n, ok := g.nodes[id]; ok {
		return append([]string(nil), n.Dependencies...)
	}
	return nil
}

// Dependents returns every node that declares id as a dependency.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, n := range g.nodes {
		for _, d := range n.Dependencies {
			if d == id {
				out = append(out, n.ID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks that every dependency of every node resolves to a
// registered node (spec §4.B validation rule).
func (g *Graph) Validate() []error {
	var errs []error
	for id, n := range g.nodes {
		var missing []string
		for _, d := range n.Dependencies {
			if _, ok := g.nodes[d]; !ok {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, &omniErrors.MissingDependencyError{AgentID: id, Missing: missing})
		}
	}
	return errs
}

// DetectCycles runs a tri-color DFS and returns the first offending cycle
// found, or nil if the graph is acyclic.
func (g *Graph) DetectCycles() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)

		for _, dep := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				continue // unresolved dependency is reported by Validate, not a cycle
			}
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				// found the back-edge; carve the cycle out of path
				start := indexOf(path, dep)
				cycle = append([]string(nil), path[start:]...)
				cycle = append(cycle, dep)
				return true
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	ids := g.sortedIDs()
	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TopologicalOrder runs Kahn's algorithm over effective in-degree
// (dependencies that actually exist in the graph). Ties are broken by id so
// the order is stable; callers must not otherwise depend on tie order
// (spec §4.B / §9 open question).
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))

	for id, n := range g.nodes {
		count := 0
		for _, d := range n.Dependencies {
			if _, ok := g.nodes[d]; ok {
				count++
				dependents[d] = append(dependents[d], id)
			}
		}
		inDegree[id] = count
	}

	var ready []string
	for _, id := range g.sortedIDs() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := append([]string(nil), dependents[id]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) < len(g.nodes) {
		done := make(map[string]bool, len(order))
		for _, id := range order {
			done[id] = true
		}
		var remaining []string
		for _, id := range g.sortedIDs() {
			if !done[id] {
				remaining = append(remaining, id)
			}
		}
		return nil, &omniErrors.CircularDependencyError{Remaining: remaining}
	}

	return order, nil
}

// TransitiveClosure returns every id reachable from id by following
// dependency edges, including id's direct and indirect dependencies.
func (g *Graph) TransitiveClosure(id string) []string {
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, d := range g.nodes[cur].Dependencies {
			if !visited[d] {
				visited[d] = true
				walk(d)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(visited))
	for d := range visited {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Visualize renders a simple textual adjacency listing, e.g. for startup
// diagnostics when dependency validation fails.
func (g *Graph) Visualize() string {
	var out string
	for _, id := range g.sortedIDs() {
		deps := g.nodes[id].Dependencies
		if len(deps) == 0 {
			out += id + "\n"
			continue
		}
		out += id + " -> " + joinComma(deps) + "\n"
	}
	return out
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
