// Package merge implements the resolver: the component that takes a
// focal artifact's partial call graph, a universal class hierarchy and
// type dictionary built from its dependency closure, and produces a
// fully resolved call graph by dispatching every harvested arc's
// invocation sites against the hierarchy.
package merge

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/fastenuri"
	"github.com/opencallgraph/merger/internal/graph"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/store"
	"github.com/opencallgraph/merger/internal/typedict"
)

// Merger ties a DependencyStore, GraphStore, and EdgeMetadataStore
// together into the end-to-end merge pipeline of spec.md §4.6.
type Merger struct {
	Dependencies store.DependencyStore
	Graphs       store.GraphStore
	EdgeMeta     store.EdgeMetadataStore
	Logger       *slog.Logger
	Options      model.Options
}

// Result is the outcome of a single merge run.
type Result struct {
	Graph  *graph.Graph
	Report *model.MergeReport
}

// Merge resolves the focal artifact's partial call graph against the
// universal hierarchy built from its dependency closure — the focal
// artifact itself plus depCoordinates, per spec.md §4.6:
//
//  1. resolve coordinates and fetch per-closure-member callables/hierarchy,
//  2. build the universal CHA and type dictionary concurrently,
//  3. fetch the focal partial graph,
//  4. harvest boundary-crossing arcs and fetch their invocation sites,
//  5. resolve every arc, folding internal-to-internal edges through
//     verbatim.
//
// ctx cancellation is honored cooperatively: in flight batched fetches
// run to completion but the resolve loop stops between arcs and returns
// model.ErrCancelled.
func (m *Merger) Merge(ctx context.Context, focalCoordinate string, depCoordinates []string) (*Result, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := newReport()

	if _, err := model.ParseCoordinate(focalCoordinate); err != nil {
		return nil, err
	}
	focalIds, err := m.Dependencies.ResolveIds(ctx, []string{focalCoordinate})
	if err != nil {
		return nil, err
	}
	focal, ok := singleID(focalIds)
	if !ok {
		return nil, &model.FocalGraphMissingError{}
	}

	depIds, err := m.Dependencies.ResolveIds(ctx, depCoordinates)
	if err != nil {
		return nil, err
	}

	// The dependency closure spec.md §4.2/Glossary defines includes the
	// focal artifact itself, so the focal's own callables/hierarchy feed
	// the universal CHA and type dictionary exactly like any dependency's.
	closureIds := make(map[store.DependencyId]struct{}, len(depIds)+1)
	for id := range depIds {
		closureIds[id] = struct{}{}
	}
	closureIds[focal] = struct{}{}

	var firstFailure *model.DependencyFetchFailedError
	onFailed := func(dep store.DependencyId, cause error) {
		recordDependencyDropped(report)
		wrapped := &model.DependencyFetchFailedError{DependencyID: uint64(dep), Cause: cause}
		if firstFailure == nil {
			firstFailure = wrapped
		}
		if m.Options.MissingDepPolicy == model.MissingDepFail {
			logger.Error("dependency fetch failed under fail policy", "error", wrapped)
		} else {
			logger.Warn("dropping dependency after fetch failure", "error", wrapped)
		}
	}

	callables, err := m.Dependencies.CallablesOf(ctx, closureIds, onFailed)
	if err != nil {
		return nil, err
	}
	if firstFailure != nil && m.Options.MissingDepPolicy == model.MissingDepFail {
		return nil, firstFailure
	}

	var universalCHA *cha.CHA
	var typeDict *typedict.Dictionary

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rows, err := m.Dependencies.HierarchyOf(gctx, callables)
		if err != nil {
			return err
		}
		universalCHA = cha.Build(rows)
		return nil
	})
	group.Go(func() error {
		uris, err := m.Dependencies.UrisOf(gctx, callables)
		if err != nil {
			return err
		}
		typeDict = typedict.Build(uris, logger, func(model.CallableId, error) {
			recordCallableDropped(report)
		})
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	focalGraph, err := m.Graphs.PartialGraph(ctx, focal)
	if err != nil {
		return nil, err
	}

	out := graph.NewBuilder()
	for _, id := range focalGraph.Nodes() {
		out.AddNode(id)
	}

	boundaryArcs, internalArcs := harvest(focalGraph)
	for _, a := range internalArcs {
		out.AddArc(a.Source, a.Target)
	}

	sites, err := m.fetchSites(ctx, boundaryArcs)
	if err != nil {
		return nil, err
	}

	nodeOf, err := m.nodesOf(ctx, boundaryArcs)
	if err != nil {
		return nil, err
	}

	r := &resolver{
		universalCHA: universalCHA,
		typeDict:     typeDict,
		nodeOf:       nodeOf,
		isExternal:   focalGraph.IsExternal,
		logger:       logger,
		options:      m.Options,
		report:       report,
		out:          out,
	}
	if err := r.resolveArcs(withSites(boundaryArcs, sites), func() bool { return ctx.Err() != nil }); err != nil {
		return nil, err
	}

	return &Result{Graph: out.Build(), Report: report}, nil
}

func singleID(ids map[store.DependencyId]struct{}) (store.DependencyId, bool) {
	for id := range ids {
		return id, true
	}
	return 0, false
}

// harvest implements the edge-harvester step of spec.md §4.5: select
// every arc where the source or target is external, or source == target
// (a self-loop, internal or external, since it may stand for a
// super-constructor call).
// Arcs with both endpoints internal and distinct are returned separately
// and folded into the output untouched.
func harvest(g *model.PartialGraph) (boundary, internal []Arc) {
	for src, dsts := range g.Successors {
		for dst := range dsts {
			a := Arc{Source: src, Target: dst}
			if g.IsExternal(src) || g.IsExternal(dst) || src == dst {
				boundary = append(boundary, a)
			} else {
				internal = append(internal, a)
			}
		}
	}
	sortArcs(boundary)
	sortArcs(internal)
	return boundary, internal
}

// fetchSites batches the harvested boundary arcs into a single
// EdgeMetadataStore.Edges call and returns the sites keyed by (source,
// target).
func (m *Merger) fetchSites(ctx context.Context, arcs []Arc) (map[store.Pair][]model.InvocationSite, error) {
	if len(arcs) == 0 {
		return nil, nil
	}
	pairs := make([]store.Pair, len(arcs))
	for i, a := range arcs {
		pairs[i] = store.Pair{Source: a.Source, Target: a.Target}
	}
	meta, err := m.EdgeMeta.Edges(ctx, pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[store.Pair][]model.InvocationSite, len(meta))
	for _, em := range meta {
		out[store.Pair{Source: em.Source, Target: em.Target}] = em.Sites
	}
	return out, nil
}

func withSites(arcs []Arc, sites map[store.Pair][]model.InvocationSite) []Arc {
	out := make([]Arc, len(arcs))
	for i, a := range arcs {
		a.Sites = sites[store.Pair{Source: a.Source, Target: a.Target}]
		out[i] = a
	}
	return out
}

// nodesOf resolves the declaring (TypeURI, Signature) of every callable
// id referenced by a boundary arc, by decoding its canonical URI
// directly rather than through the universal type dictionary's index.
// This is needed for external callables referenced by id that belong to
// artifacts outside the dependency closure entirely (so they were never
// fetched by UrisOf/HierarchyOf above), not just the focal's own
// callables, which are indexed in the universal structures too now that
// the focal is part of the closure.
func (m *Merger) nodesOf(ctx context.Context, arcs []Arc) (map[model.CallableId]model.Node, error) {
	ids := make(map[model.CallableId]struct{}, 2*len(arcs))
	for _, a := range arcs {
		ids[a.Source] = struct{}{}
		ids[a.Target] = struct{}{}
	}
	ordered := make([]model.CallableId, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	uris, err := m.Dependencies.UrisOf(ctx, ordered)
	if err != nil {
		return nil, err
	}

	out := make(map[model.CallableId]model.Node, len(uris))
	for _, c := range uris {
		decanon, err := fastenuri.Decanonicalize(c.URI)
		if err != nil {
			continue
		}
		node, err := fastenuri.Parse(decanon)
		if err != nil {
			continue
		}
		out[c.ID] = node
	}
	return out, nil
}
