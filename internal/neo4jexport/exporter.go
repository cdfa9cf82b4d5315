// Package neo4jexport loads a resolved call graph into Neo4j for
// interactive inspection, the same batched UNWIND/MERGE loading style
// the teacher's own loader uses.
package neo4jexport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/opencallgraph/merger/internal/graph"
	"github.com/opencallgraph/merger/internal/model"
)

// Exporter loads merged call graphs into Neo4j using batch UNWIND
// queries, the same approach as a plain Cypher script would take but
// driven from Go so it can run as a step of the merge pipeline.
type Exporter struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// New connects to Neo4j at uri and returns a ready-to-use exporter.
func New(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{driver: driver, logger: logger}, nil
}

// Close releases the underlying Neo4j driver resources.
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

func (e *Exporter) run(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, e.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// CleanGraph removes all previously loaded merged-graph nodes and
// relationships, leaving any other data in the database untouched.
func (e *Exporter) CleanGraph(ctx context.Context) error {
	e.logger.Info("cleaning previously loaded merged graph")
	queries := []string{
		"MATCH ()-[r:RESOLVED_CALLS]->() DELETE r",
		"MATCH (n:Callable) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := e.run(ctx, q, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes ensures the indexes the loader's MERGE statements rely
// on for O(1) node lookup exist.
func (e *Exporter) CreateIndexes(ctx context.Context) error {
	e.logger.Info("creating neo4j indexes")
	return e.run(ctx, "CREATE INDEX callable_id IF NOT EXISTS FOR (n:Callable) ON (n.callable_id)", nil)
}

// LoadNodes upserts a Callable node per graph node, with its URI stored
// in the uri property (uris may be a partial map: nodes absent from it
// get an empty uri).
func (e *Exporter) LoadNodes(ctx context.Context, nodes []model.CallableId, uris map[model.CallableId]string) error {
	e.logger.Info("loading callable nodes", "count", len(nodes))
	batch := make([]map[string]any, 0, len(nodes))
	for _, id := range nodes {
		batch = append(batch, map[string]any{
			"id":  int64(id),
			"uri": uris[id],
		})
	}
	return e.run(ctx,
		`UNWIND $batch AS row
		 MERGE (n:Callable {callable_id: row.id})
		 SET n.uri = row.uri`,
		map[string]any{"batch": batch},
	)
}

// LoadEdges upserts RESOLVED_CALLS relationships for every arc in g.
func (e *Exporter) LoadEdges(ctx context.Context, g *graph.Graph) error {
	serialized := g.Serialize()
	e.logger.Info("loading resolved call edges", "count", len(serialized.Arcs))
	batch := make([]map[string]any, 0, len(serialized.Arcs))
	for _, arc := range serialized.Arcs {
		batch = append(batch, map[string]any{
			"source": int64(arc[0]),
			"target": int64(arc[1]),
		})
	}
	return e.run(ctx,
		`UNWIND $batch AS row
		 MERGE (src:Callable {callable_id: row.source})
		 MERGE (dst:Callable {callable_id: row.target})
		 MERGE (src)-[:RESOLVED_CALLS]->(dst)`,
		map[string]any{"batch": batch},
	)
}

// Export runs the full clean(optional)/index/node/edge loading sequence
// for a single merge result.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph, uris map[model.CallableId]string, clean bool) error {
	if clean {
		if err := e.CleanGraph(ctx); err != nil {
			return err
		}
	}
	if err := e.CreateIndexes(ctx); err != nil {
		return err
	}
	if err := e.LoadNodes(ctx, g.Nodes(), uris); err != nil {
		return err
	}
	return e.LoadEdges(ctx, g)
}
