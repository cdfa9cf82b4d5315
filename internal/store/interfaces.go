// Package store defines the three external contracts the merger
// consumes — DependencyStore, GraphStore, EdgeMetadataStore — and
// provides an in-memory reference implementation plus two concrete
// backends (Postgres-backed metadata, Badger-backed graph blobs). The
// merger core never talks to a database or disk directly; it only ever
// calls through these interfaces.
package store

import (
	"context"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/typedict"
)

// DependencyId is the opaque id the metadata store assigns to a
// package-version (a "revision" in spec.md's terms).
type DependencyId uint64

// DependencyStore resolves coordinates to dependency ids and serves the
// callables and hierarchy metadata the universal CHA and type dictionary
// are built from.
type DependencyStore interface {
	// ResolveIds deduplicates coordinates and returns the subset present
	// under the target forge. Missing coordinates are silently dropped.
	ResolveIds(ctx context.Context, coordinates []string) (map[DependencyId]struct{}, error)

	// CallablesOf returns only the internal (non-external) callables of
	// each dependency's partial graph. Per-dependency failures are
	// reported via onFailed and the dependency is skipped, never fatal.
	CallablesOf(ctx context.Context, deps map[DependencyId]struct{}, onFailed func(DependencyId, error)) ([]model.CallableId, error)

	// UrisOf batch-resolves callable ids to their raw (canonical) URI
	// strings.
	UrisOf(ctx context.Context, callables []model.CallableId) ([]typedict.Callable, error)

	// HierarchyOf returns one row per module that owns at least one of
	// the given callables.
	HierarchyOf(ctx context.Context, callables []model.CallableId) ([]cha.HierarchyRow, error)
}

// GraphStore fetches the partial call graph for a single package-version.
type GraphStore interface {
	// PartialGraph fetches the partial call graph for id. A missing
	// graph is reported as *model.FocalGraphMissingError.
	PartialGraph(ctx context.Context, id DependencyId) (*model.PartialGraph, error)
}

// EdgeMetadataStore resolves invocation-site metadata for a set of
// (source, target) id pairs in one batched query.
type EdgeMetadataStore interface {
	Edges(ctx context.Context, pairs []Pair) ([]EdgeMetadata, error)
}

// Pair is a (source, target) callable id pair identifying a harvested
// arc whose invocation sites are being requested.
type Pair struct {
	Source model.CallableId
	Target model.CallableId
}

// EdgeMetadata is the invocation-site metadata for one harvested arc.
type EdgeMetadata struct {
	Source model.CallableId
	Target model.CallableId
	Sites  []model.InvocationSite
}
