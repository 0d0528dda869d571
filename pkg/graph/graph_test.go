package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := New()
	assert.True(t, g.AddNode("/"))
	assert.False(t, g.AddNode("/"), "second insert must report existing node")
	assert.False(t, g.AddNode(""), "empty id rejected")
	assert.Equal(t, 1, g.NodeCount())
	assert.True(t, g.HasNode("/"))
	assert.False(t, g.HasNode("/missing"))
}

func TestAddEdgeIfAbsent(t *testing.T) {
	g := New()
	assert.True(t, g.AddEdgeIfAbsent("/a", "/b"))
	assert.False(t, g.AddEdgeIfAbsent("/a", "/b"))
	assert.True(t, g.AddEdgeIfAbsent("/b", "/a"), "reverse direction is a different edge")

	assert.Equal(t, 2, g.NodeCount(), "endpoints created implicitly")
	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.HasEdge("/a", "/b"))
	assert.True(t, g.HasEdge("/b", "/a"))
	assert.False(t, g.HasEdge("/a", "/c"))
}

func TestAddEdgeIfAbsent_SelfLoop(t *testing.T) {
	g := New()
	assert.True(t, g.AddEdgeIfAbsent("/", "/"))
	assert.False(t, g.AddEdgeIfAbsent("/", "/"))
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"/"}, g.Successors("/"))
}

func TestAddEdgeIfAbsent_EmptyIDs(t *testing.T) {
	g := New()
	assert.False(t, g.AddEdgeIfAbsent("", "/b"))
	assert.False(t, g.AddEdgeIfAbsent("/a", ""))
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestSuccessors(t *testing.T) {
	g := New()
	g.AddEdgeIfAbsent("/", "/z")
	g.AddEdgeIfAbsent("/", "/a")
	g.AddEdgeIfAbsent("/", "/m")

	assert.Equal(t, []string{"/a", "/m", "/z"}, g.Successors("/"))
	assert.Empty(t, g.Successors("/a"))
	assert.Nil(t, g.Successors("/unknown"))
}

func TestSnapshot_SortedAndConsistent(t *testing.T) {
	g := New()
	g.AddNode("/lonely")
	g.AddEdgeIfAbsent("/b", "/c")
	g.AddEdgeIfAbsent("/a", "/c")
	g.AddEdgeIfAbsent("/a", "/b")

	snap := g.Snapshot()
	assert.Equal(t, []string{"/a", "/b", "/c", "/lonely"}, snap.Nodes)
	assert.Equal(t, []Edge{{"/a", "/b"}, {"/a", "/c"}, {"/b", "/c"}}, snap.Edges)
	assert.Equal(t, []string{"/b", "/c"}, snap.Successors("/a"))
	assert.Nil(t, snap.Successors("/lonely"))

	in := snap.InDegrees()
	assert.Equal(t, 2, in["/c"])
	assert.Equal(t, 0, in["/a"])

	// Later mutations do not leak into an existing snapshot
	g.AddEdgeIfAbsent("/c", "/d")
	assert.Len(t, snap.Edges, 3)
	assert.Len(t, snap.Nodes, 4)
}

func TestConcurrentAddEdge_NoDuplicates(t *testing.T) {
	g := New()
	const writers = 32
	const targets = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0

	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < targets; i++ {
				if g.AddEdgeIfAbsent("/", fmt.Sprintf("/p%d", i)) {
					mu.Lock()
					added++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, targets, added, "each edge reported new exactly once")
	assert.Equal(t, targets, g.EdgeCount())
	assert.Equal(t, targets+1, g.NodeCount())
	assert.Len(t, g.Successors("/"), targets)
}

func TestConcurrentSnapshotDuringWrites(t *testing.T) {
	g := New()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			g.AddEdgeIfAbsent(fmt.Sprintf("/s%d", i%7), fmt.Sprintf("/t%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			snap := g.Snapshot()
			nodes := make(map[string]struct{}, len(snap.Nodes))
			for _, id := range snap.Nodes {
				nodes[id] = struct{}{}
			}
			for _, e := range snap.Edges {
				_, okFrom := nodes[e.From]
				_, okTo := nodes[e.To]
				require.True(t, okFrom && okTo, "edge %v has endpoint missing from snapshot", e)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, n, g.EdgeCount())
}
