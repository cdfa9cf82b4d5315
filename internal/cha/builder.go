// Package cha builds the universal class hierarchy: a directed
// subtype->supertype graph unioned from every module's hierarchy metadata
// in the dependency closure, plus the reflexive-transitive closures
// (ancestors, descendants) the resolver needs for virtual/interface
// dispatch and constructor-chain expansion.
package cha

import (
	"github.com/opencallgraph/merger/internal/intern"
	"github.com/opencallgraph/merger/internal/model"
)

// HierarchyRow is one module's hierarchy metadata, as returned by
// DependencyStore.HierarchyOf: the module's own type and the super
// classes/interfaces it directly extends or implements.
type HierarchyRow struct {
	TypeNamespace   string
	SuperClasses    []model.TypeURI
	SuperInterfaces []model.TypeURI
}

// CHA is the built universal class hierarchy: for every type seen,
// Ancestors(t) and Descendants(t) are reflexive, transitively closed,
// and dual (u in Ancestors(t) iff t in Descendants(u)).
type CHA struct {
	table       *intern.Table
	ancestors   map[intern.TypeId][]intern.TypeId
	descendants map[intern.TypeId][]intern.TypeId
}

// Ancestors returns the set of types t is a (reflexive, transitive)
// subtype of, as TypeURI strings. An unknown type returns an empty slice.
func (c *CHA) Ancestors(t model.TypeURI) []model.TypeURI {
	return c.materialize(c.ancestors, t)
}

// Descendants returns the set of types that are (reflexively,
// transitively) subtypes of t, as TypeURI strings. An unknown type
// returns an empty slice.
func (c *CHA) Descendants(t model.TypeURI) []model.TypeURI {
	return c.materialize(c.descendants, t)
}

func (c *CHA) materialize(m map[intern.TypeId][]intern.TypeId, t model.TypeURI) []model.TypeURI {
	id, ok := c.table.Lookup(string(t))
	if !ok {
		return nil
	}
	ids := m[id]
	out := make([]model.TypeURI, len(ids))
	for i, tid := range ids {
		out[i] = model.TypeURI(c.table.String(tid))
	}
	return out
}

// Build constructs the universal CHA from hierarchy rows. Each row
// contributes an edge super -> child for every entry in SuperClasses and
// SuperInterfaces (duplicate (child, parent) pairs collapse to one edge).
// Closure computation is an iterative worklist over a visited set so
// cycles in malformed metadata degenerate into a single strongly
// connected component rather than causing non-termination or a stack
// overflow.
func Build(rows []HierarchyRow) *CHA {
	table := intern.New()
	children := make(map[intern.TypeId]map[intern.TypeId]struct{}) // parent -> direct children
	parents := make(map[intern.TypeId]map[intern.TypeId]struct{})  // child -> direct parents

	addEdge := func(parent, child intern.TypeId) {
		if children[parent] == nil {
			children[parent] = make(map[intern.TypeId]struct{})
		}
		children[parent][child] = struct{}{}
		if parents[child] == nil {
			parents[child] = make(map[intern.TypeId]struct{})
		}
		parents[child][parent] = struct{}{}
	}

	ensureVertex := func(uri model.TypeURI) intern.TypeId {
		return table.Intern(string(uri))
	}

	for _, row := range rows {
		self := ensureVertex(model.TypeURI(row.TypeNamespace))
		if children[self] == nil {
			children[self] = make(map[intern.TypeId]struct{})
		}
		if parents[self] == nil {
			parents[self] = make(map[intern.TypeId]struct{})
		}
		for _, super := range row.SuperClasses {
			addEdge(ensureVertex(super), self)
		}
		for _, super := range row.SuperInterfaces {
			addEdge(ensureVertex(super), self)
		}
	}

	ancestors := make(map[intern.TypeId][]intern.TypeId, table.Len())
	descendants := make(map[intern.TypeId][]intern.TypeId, table.Len())
	for id := 0; id < table.Len(); id++ {
		tid := intern.TypeId(id)
		ancestors[tid] = intern.SortIds(closure(tid, parents))
		descendants[tid] = intern.SortIds(closure(tid, children))
	}

	return &CHA{table: table, ancestors: ancestors, descendants: descendants}
}

// closure computes the reflexive-transitive closure of tid following
// adj (either the parents or the children adjacency map) using an
// explicit worklist and visited set, so cycles terminate.
func closure(tid intern.TypeId, adj map[intern.TypeId]map[intern.TypeId]struct{}) []intern.TypeId {
	visited := map[intern.TypeId]struct{}{tid: {}}
	worklist := []intern.TypeId{tid}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for next := range adj[cur] {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				worklist = append(worklist, next)
			}
		}
	}
	out := make([]intern.TypeId, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	return out
}
