// Package graph holds the page-link graph built during a crawl.
package graph

import (
	"sort"
	"sync"
)

// Edge is a directed link between two node ids
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Snapshot is a point-in-time copy of the graph with sorted nodes and edges
type Snapshot struct {
	Nodes []string `yaml:"nodes"`
	Edges []Edge   `yaml:"edges"`
}

// Graph is a directed graph without parallel edges, safe for concurrent use.
// Nodes and edges are only ever added.
type Graph struct {
	mu    sync.RWMutex
	adj   map[string]map[string]struct{} // node -> successors; every node has an entry
	edges int
}

// New returns an empty graph
func New() *Graph {
	return &Graph{adj: make(map[string]map[string]struct{})}
}

// addNodeLocked requires g.mu held for writing
func (g *Graph) addNodeLocked(id string) bool {
	if _, ok := g.adj[id]; ok {
		return false
	}
	g.adj[id] = make(map[string]struct{})
	return true
}

// AddNode inserts id and reports whether it was new. Empty ids are rejected.
func (g *Graph) AddNode(id string) bool {
	if id == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(id)
}

// AddEdgeIfAbsent inserts the edge src->dst, creating missing endpoints, and reports whether the edge was new
// Self-loops are allowed. Empty ids are rejected.
func (g *Graph) AddEdgeIfAbsent(src, dst string) bool {
	if src == "" || dst == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(src)
	g.addNodeLocked(dst)
	succ := g.adj[src]
	if _, ok := succ[dst]; ok {
		return false
	}
	succ[dst] = struct{}{}
	g.edges++
	return true
}

// HasNode reports whether id is in the graph
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.adj[id]
	return ok
}

// HasEdge reports whether src->dst is in the graph
func (g *Graph) HasEdge(src, dst string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.adj[src][dst]
	return ok
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj)
}

// EdgeCount returns the number of distinct edges
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// Successors returns the sorted out-neighbours of id, or nil if id is unknown
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	succ, ok := g.adj[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(succ))
	for dst := range succ {
		out = append(out, dst)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies nodes and edges under a single read lock, so the result never shows an edge without its endpoints
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	nodes := make([]string, 0, len(g.adj))
	edges := make([]Edge, 0, g.edges)
	for src, succ := range g.adj {
		nodes = append(nodes, src)
		for dst := range succ {
			edges = append(edges, Edge{From: src, To: dst})
		}
	}
	g.mu.RUnlock()

	sort.Strings(nodes)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return Snapshot{Nodes: nodes, Edges: edges}
}

// Successors returns the sorted out-neighbours of id within the snapshot
func (s Snapshot) Successors(id string) []string {
	// Edges are sorted by From, so the run for id is contiguous
	start := sort.Search(len(s.Edges), func(i int) bool { return s.Edges[i].From >= id })
	var out []string
	for i := start; i < len(s.Edges) && s.Edges[i].From == id; i++ {
		out = append(out, s.Edges[i].To)
	}
	return out
}

// InDegrees counts incoming edges per node
func (s Snapshot) InDegrees() map[string]int {
	in := make(map[string]int, len(s.Nodes))
	for _, e := range s.Edges {
		in[e.To]++
	}
	return in
}
