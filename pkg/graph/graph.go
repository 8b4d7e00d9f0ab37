// Package graph implements the IntentGraph of spec §3/§4.2: a map of
// IntentId to IntentNode with a derived ready-set function, rejecting
// dangling dependencies and cycles at construction time.
package graph

import (
	"fmt"
	"sort"

	"github.com/agencyrun/agency/pkg/agency"
	"github.com/agencyrun/agency/pkg/ids"
)

// IntentGraph is a dependency-ordered batch of intents emitted by one
// kernel step.
type IntentGraph struct {
	nodes map[ids.IntentID]agency.IntentNode
	order []ids.IntentID // insertion order, used for deterministic IDs() output
}

// New returns an empty IntentGraph.
func New() *IntentGraph {
	return &IntentGraph{nodes: make(map[ids.IntentID]agency.IntentNode)}
}

// Add inserts a node, rejecting a duplicate IntentID, a dangling
// dependency, or a dependency cycle introduced by this insertion.
func (g *IntentGraph) Add(node agency.IntentNode) error {
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("graph: duplicate intent id %s", node.ID)
	}
	for _, dep := range node.Dependencies {
		if dep == node.ID {
			return fmt.Errorf("graph: intent %s depends on itself", node.ID)
		}
		if _, ok := g.nodes[dep]; !ok {
			return fmt.Errorf("graph: intent %s has dangling dependency %s", node.ID, dep)
		}
	}

	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)

	if cycle := g.findCycle(); cycle != nil {
		// Roll back: the graph must never retain an invalid insertion.
		delete(g.nodes, node.ID)
		g.order = g.order[:len(g.order)-1]
		return fmt.Errorf("graph: adding %s introduces a cycle: %v", node.ID, cycle)
	}
	return nil
}

// findCycle runs Kahn's algorithm over the current node set and returns a
// non-nil slice of the IDs that could never be scheduled (i.e. a cycle)
// when one exists.
func (g *IntentGraph) findCycle() []ids.IntentID {
	indegree := make(map[ids.IntentID]int, len(g.nodes))
	for id, n := range g.nodes {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for range n.Dependencies {
			indegree[id]++
		}
	}

	queue := make([]ids.IntentID, 0, len(g.nodes))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for other, n := range g.nodes {
			for _, dep := range n.Dependencies {
				if dep != id {
					continue
				}
				indegree[other]--
				if indegree[other] == 0 {
					queue = append(queue, other)
				}
			}
		}
	}

	if visited == len(g.nodes) {
		return nil
	}

	remaining := make([]ids.IntentID, 0, len(g.nodes)-visited)
	for id, deg := range indegree {
		if deg > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Less(remaining[j]) })
	return remaining
}

// Get returns the node for id, if present.
func (g *IntentGraph) Get(id ids.IntentID) (agency.IntentNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *IntentGraph) Len() int { return len(g.nodes) }

// IsEmpty reports whether the graph has no nodes.
func (g *IntentGraph) IsEmpty() bool { return len(g.nodes) == 0 }

// IDs returns every IntentID in the graph, in insertion order.
func (g *IntentGraph) IDs() []ids.IntentID {
	out := make([]ids.IntentID, len(g.order))
	copy(out, g.order)
	return out
}

// Ready returns the nodes whose dependencies are all present in completed,
// excluding nodes that are themselves already completed, sorted by
// (Priority, IntentID) for deterministic tie-breaking (spec §4.2.c).
func (g *IntentGraph) Ready(completed map[ids.IntentID]bool) []agency.IntentNode {
	var ready []agency.IntentNode
	for id, node := range g.nodes {
		if completed[id] {
			continue
		}
		satisfied := true
		for _, dep := range node.Dependencies {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, node)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].ID.Less(ready[j].ID)
	})
	return ready
}
