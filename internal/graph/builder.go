// Package graph implements the output graph builder: idempotent node and
// arc insertion over CallableIds, with a final immutable snapshot that
// serializes to the wire format spec.md §6 defines.
package graph

import (
	"sort"

	"github.com/opencallgraph/merger/internal/model"
)

// Builder accumulates nodes and arcs with idempotent insertion. It is an
// internal deduplication detail of the merge; callers only see the
// immutable Graph returned by Build.
type Builder struct {
	nodes map[model.CallableId]struct{}
	arcs  map[model.CallableId]map[model.CallableId]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[model.CallableId]struct{}),
		arcs:  make(map[model.CallableId]map[model.CallableId]struct{}),
	}
}

// AddNode inserts id if absent. A repeat call is a no-op.
func (b *Builder) AddNode(id model.CallableId) {
	b.nodes[id] = struct{}{}
}

// AddArc inserts the src->dst arc, adding both endpoints as nodes first
// if necessary. A repeat call with the same arguments is a no-op.
func (b *Builder) AddArc(src, dst model.CallableId) {
	b.AddNode(src)
	b.AddNode(dst)
	if b.arcs[src] == nil {
		b.arcs[src] = make(map[model.CallableId]struct{})
	}
	b.arcs[src][dst] = struct{}{}
}

// Build freezes the accumulated nodes and arcs into an immutable Graph.
func (b *Builder) Build() *Graph {
	nodes := make([]model.CallableId, 0, len(b.nodes))
	for id := range b.nodes {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	successors := make(map[model.CallableId][]model.CallableId, len(b.arcs))
	predecessors := make(map[model.CallableId][]model.CallableId)
	for src, dsts := range b.arcs {
		list := make([]model.CallableId, 0, len(dsts))
		for dst := range dsts {
			list = append(list, dst)
			predecessors[dst] = append(predecessors[dst], src)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		successors[src] = list
	}
	for dst := range predecessors {
		sort.Slice(predecessors[dst], func(i, j int) bool { return predecessors[dst][i] < predecessors[dst][j] })
	}

	return &Graph{nodes: nodes, successors: successors, predecessors: predecessors}
}

// Graph is an immutable directed multigraph-turned-simple-graph snapshot
// (duplicate arc insertions collapse, matching the idempotence invariant)
// with O(1) successor/predecessor iteration per node.
type Graph struct {
	nodes        []model.CallableId
	successors   map[model.CallableId][]model.CallableId
	predecessors map[model.CallableId][]model.CallableId
}

// Nodes returns the node ids in ascending order.
func (g *Graph) Nodes() []model.CallableId { return g.nodes }

// Successors returns id's successors in ascending order.
func (g *Graph) Successors(id model.CallableId) []model.CallableId { return g.successors[id] }

// Predecessors returns id's predecessors in ascending order.
func (g *Graph) Predecessors(id model.CallableId) []model.CallableId { return g.predecessors[id] }

// Arc is one (source, target) pair in the serialized wire format.
type Arc [2]model.CallableId

// Serialized is the wire format spec.md §6 specifies: nodes in ascending
// order, arcs lexicographically ordered for reproducibility.
type Serialized struct {
	Nodes []model.CallableId `json:"nodes"`
	Arcs  []Arc              `json:"arcs"`
}

// Serialize flattens the graph into the reproducible wire format.
func (g *Graph) Serialize() Serialized {
	var arcs []Arc
	for _, src := range g.nodes {
		for _, dst := range g.successors[src] {
			arcs = append(arcs, Arc{src, dst})
		}
	}
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i][0] != arcs[j][0] {
			return arcs[i][0] < arcs[j][0]
		}
		return arcs[i][1] < arcs[j][1]
	})
	return Serialized{Nodes: g.nodes, Arcs: arcs}
}
