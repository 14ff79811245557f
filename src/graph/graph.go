// Package graph provides the local topology a community walks on: the
// neighbors of a node and the community that owns it.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownNode is returned for nodes the graph has never seen.
var ErrUnknownNode = errors.New("unknown node")

// Graph is the capability the walk coordinator needs from topology storage.
type Graph interface {
	// Neighbors returns the candidate next nodes of node, in a stable order.
	Neighbors(node string) ([]string, error)
	// Owner returns the community that owns node.
	Owner(node string) (string, error)
}

// InmemGraph is a Graph held in memory. It is safe for concurrent use.
type InmemGraph struct {
	sync.RWMutex
	adjacency map[string][]string
	owners    map[string]string
	edges     map[[2]string]bool
}

// NewInmemGraph creates an empty graph.
func NewInmemGraph() *InmemGraph {
	return &InmemGraph{
		adjacency: make(map[string][]string),
		owners:    make(map[string]string),
		edges:     make(map[[2]string]bool),
	}
}

// SetOwner assigns node to community. A node can only belong to one
// community.
func (g *InmemGraph) SetOwner(node, community string) error {
	g.Lock()
	defer g.Unlock()

	if prev, ok := g.owners[node]; ok && prev != community {
		return fmt.Errorf("node %s already belongs to %s", node, prev)
	}
	g.owners[node] = community
	return nil
}

// AddEdge adds the directed edge from -> to. Duplicate edges are ignored.
func (g *InmemGraph) AddEdge(from, to string) {
	g.Lock()
	defer g.Unlock()

	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// AddUndirectedEdge adds both a -> b and b -> a.
func (g *InmemGraph) AddUndirectedEdge(a, b string) {
	g.AddEdge(a, b)
	if a != b {
		g.AddEdge(b, a)
	}
}

// Neighbors implements Graph. A node that has an owner but no edges has no
// neighbors.
func (g *InmemGraph) Neighbors(node string) ([]string, error) {
	g.RLock()
	defer g.RUnlock()

	adj, ok := g.adjacency[node]
	if !ok {
		if _, owned := g.owners[node]; !owned {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
		}
		return nil, nil
	}

	res := make([]string, len(adj))
	copy(res, adj)
	return res, nil
}

// Owner implements Graph.
func (g *InmemGraph) Owner(node string) (string, error) {
	g.RLock()
	defer g.RUnlock()

	owner, ok := g.owners[node]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	return owner, nil
}

// NodesOf returns the number of nodes owned by community.
func (g *InmemGraph) NodesOf(community string) int {
	g.RLock()
	defer g.RUnlock()

	n := 0
	for _, c := range g.owners {
		if c == community {
			n++
		}
	}
	return n
}

// Communities returns the sorted list of communities owning at least one node.
func (g *InmemGraph) Communities() []string {
	g.RLock()
	defer g.RUnlock()

	seen := make(map[string]bool)
	res := []string{}
	for _, c := range g.owners {
		if !seen[c] {
			seen[c] = true
			res = append(res, c)
		}
	}
	sort.Strings(res)
	return res
}
