package store

import (
	"context"
	"fmt"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/typedict"
)

// Memory is an in-memory reference implementation of DependencyStore,
// GraphStore, and EdgeMetadataStore. It backs the unit test suite and
// can serve as a zero-infrastructure backend for merges driven entirely
// from fixture data; the cgmerge CLI does not use it.
type Memory struct {
	Coordinates map[string]DependencyId // "group:artifact:version" -> id
	Callables   map[DependencyId][]model.CallableId
	Uris        map[model.CallableId]string
	Hierarchy   map[DependencyId][]cha.HierarchyRow
	Graphs      map[DependencyId]*model.PartialGraph
	EdgeSites   map[Pair][]model.InvocationSite
}

// NewMemory returns an empty in-memory store ready for population.
func NewMemory() *Memory {
	return &Memory{
		Coordinates: make(map[string]DependencyId),
		Callables:   make(map[DependencyId][]model.CallableId),
		Uris:        make(map[model.CallableId]string),
		Hierarchy:   make(map[DependencyId][]cha.HierarchyRow),
		Graphs:      make(map[DependencyId]*model.PartialGraph),
		EdgeSites:   make(map[Pair][]model.InvocationSite),
	}
}

func (m *Memory) ResolveIds(_ context.Context, coordinates []string) (map[DependencyId]struct{}, error) {
	seen := make(map[string]struct{}, len(coordinates))
	out := make(map[DependencyId]struct{})
	for _, c := range coordinates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if id, ok := m.Coordinates[c]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *Memory) CallablesOf(_ context.Context, deps map[DependencyId]struct{}, onFailed func(DependencyId, error)) ([]model.CallableId, error) {
	var out []model.CallableId
	for dep := range deps {
		ids, ok := m.Callables[dep]
		if !ok {
			if onFailed != nil {
				onFailed(dep, fmt.Errorf("no callables registered for dependency %d", dep))
			}
			continue
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (m *Memory) UrisOf(_ context.Context, callables []model.CallableId) ([]typedict.Callable, error) {
	out := make([]typedict.Callable, 0, len(callables))
	for _, id := range callables {
		if uri, ok := m.Uris[id]; ok {
			out = append(out, typedict.Callable{ID: id, URI: uri})
		}
	}
	return out, nil
}

func (m *Memory) HierarchyOf(_ context.Context, callables []model.CallableId) ([]cha.HierarchyRow, error) {
	wanted := make(map[model.CallableId]struct{}, len(callables))
	for _, id := range callables {
		wanted[id] = struct{}{}
	}

	var out []cha.HierarchyRow
	for dep, ids := range m.Callables {
		owns := false
		for _, id := range ids {
			if _, ok := wanted[id]; ok {
				owns = true
				break
			}
		}
		if owns {
			out = append(out, m.Hierarchy[dep]...)
		}
	}
	return out, nil
}

func (m *Memory) PartialGraph(_ context.Context, id DependencyId) (*model.PartialGraph, error) {
	g, ok := m.Graphs[id]
	if !ok {
		return nil, &model.FocalGraphMissingError{PackageVersionID: uint64(id)}
	}
	return g, nil
}

func (m *Memory) Edges(_ context.Context, pairs []Pair) ([]EdgeMetadata, error) {
	out := make([]EdgeMetadata, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, EdgeMetadata{Source: p.Source, Target: p.Target, Sites: m.EdgeSites[p]})
	}
	return out, nil
}
