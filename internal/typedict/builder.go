// Package typedict builds the type dictionary: an index from
// (TypeURI, Signature) to the set of callable ids in the closure that
// implement it. It is the resolver's other big read-only structure,
// built once per merge alongside the universal CHA.
package typedict

import (
	"log/slog"

	"github.com/opencallgraph/merger/internal/fastenuri"
	"github.com/opencallgraph/merger/internal/model"
)

// Callable is one (id, URI) pair as returned by DependencyStore.UrisOf.
type Callable struct {
	ID  model.CallableId
	URI string
}

// Dictionary maps TypeURI -> Signature -> set of callable ids.
type Dictionary struct {
	byType map[model.TypeURI]map[model.Signature]map[model.CallableId]struct{}
}

// Lookup returns the callable ids registered under (t, sig). Missing
// entries return nil, matching the default-to-empty-set behavior the
// resolver relies on.
func (d *Dictionary) Lookup(t model.TypeURI, sig model.Signature) map[model.CallableId]struct{} {
	bySig, ok := d.byType[t]
	if !ok {
		return nil
	}
	return bySig[sig]
}

// Build indexes every callable under its own (typeURI, signature). A
// callable whose URI fails to parse is dropped (a UriMalformedError for
// each failure is passed to onDropped) but does not abort the build.
func Build(callables []Callable, logger *slog.Logger, onDropped func(model.CallableId, error)) *Dictionary {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dictionary{byType: make(map[model.TypeURI]map[model.Signature]map[model.CallableId]struct{})}

	for _, c := range callables {
		decanon, err := fastenuri.Decanonicalize(c.URI)
		if err != nil {
			logger.Warn("dropping callable with malformed URI", "callable_id", c.ID, "uri", c.URI, "error", err)
			if onDropped != nil {
				onDropped(c.ID, &model.UriMalformedError{CallableID: c.ID, Cause: err})
			}
			continue
		}
		node, err := fastenuri.Parse(decanon)
		if err != nil {
			logger.Warn("dropping callable with malformed URI", "callable_id", c.ID, "uri", c.URI, "error", err)
			if onDropped != nil {
				onDropped(c.ID, &model.UriMalformedError{CallableID: c.ID, Cause: err})
			}
			continue
		}

		bySig, ok := d.byType[node.TypeURI]
		if !ok {
			bySig = make(map[model.Signature]map[model.CallableId]struct{})
			d.byType[node.TypeURI] = bySig
		}
		ids, ok := bySig[node.Signature]
		if !ok {
			ids = make(map[model.CallableId]struct{})
			bySig[node.Signature] = ids
		}
		ids[c.ID] = struct{}{}
	}

	return d
}
