package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/opencallgraph/merger/internal/model"
)

// BadgerGraphs serves GraphStore from an embedded Badger LSM key-value
// store, keying JSON-encoded PartialGraph blobs by package-version id.
// It plays the role of "the graph blob store" spec.md §1 lists as an
// external collaborator — a real embedded storage engine rather than a
// hand-rolled one.
type BadgerGraphs struct {
	db *badger.DB
}

// OpenBadgerGraphs opens (creating if absent) a Badger database at dir.
func OpenBadgerGraphs(dir string) (*BadgerGraphs, error) {
	db, err := badger.Open(badger.DefaultOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("open badger graph store at %s: %w", dir, err)
	}
	return &BadgerGraphs{db: db}, nil
}

// Close releases the underlying Badger database.
func (b *BadgerGraphs) Close() error { return b.db.Close() }

func graphKey(id DependencyId) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// partialGraphDTO is the JSON-serializable shape of model.PartialGraph;
// the set fields serialize as sorted id lists for reproducible blobs.
type partialGraphDTO struct {
	Internal   []model.CallableId                       `json:"internal"`
	External   []model.CallableId                       `json:"external"`
	Successors map[model.CallableId][]model.CallableId `json:"successors"`
}

// PutPartialGraph writes g for id, overwriting any existing blob. Used
// by ingestion tooling (outside the merger's own read path) to populate
// the store from an analyzer's output.
func (b *BadgerGraphs) PutPartialGraph(id DependencyId, g *model.PartialGraph) error {
	dto := partialGraphDTO{Successors: make(map[model.CallableId][]model.CallableId, len(g.Successors))}
	for n := range g.InternalNodes {
		dto.Internal = append(dto.Internal, n)
	}
	for n := range g.ExternalNodes {
		dto.External = append(dto.External, n)
	}
	sort.Slice(dto.Internal, func(i, j int) bool { return dto.Internal[i] < dto.Internal[j] })
	sort.Slice(dto.External, func(i, j int) bool { return dto.External[i] < dto.External[j] })
	for src, dsts := range g.Successors {
		list := make([]model.CallableId, 0, len(dsts))
		for dst := range dsts {
			list = append(list, dst)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		dto.Successors[src] = list
	}

	payload, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("encode partial graph for %d: %w", id, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(graphKey(id), payload)
	})
}

// PartialGraph implements GraphStore.
func (b *BadgerGraphs) PartialGraph(_ context.Context, id DependencyId) (*model.PartialGraph, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(graphKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payload = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, &model.FocalGraphMissingError{PackageVersionID: uint64(id)}
	}
	if err != nil {
		return nil, &model.StoreUnavailableError{Store: "badger.PartialGraph", Cause: err}
	}

	var dto partialGraphDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return nil, &model.StoreUnavailableError{Store: "badger.PartialGraph", Cause: err}
	}

	g := model.NewPartialGraph()
	for _, n := range dto.Internal {
		g.InternalNodes[n] = struct{}{}
	}
	for _, n := range dto.External {
		g.ExternalNodes[n] = struct{}{}
	}
	for src, dsts := range dto.Successors {
		for _, dst := range dsts {
			g.AddEdge(src, dst)
		}
	}
	return g, nil
}
