// Package cli assembles the cgmerge command tree: a "merge" command
// that runs a single focal-artifact resolution end to end, and a
// "version" command, in the same cobra root-command layout the rest of
// the corpus uses for its CLIs.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencallgraph/merger/internal/config"
	"github.com/opencallgraph/merger/internal/merge"
	"github.com/opencallgraph/merger/internal/metrics"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/neo4jexport"
	"github.com/opencallgraph/merger/internal/store"
)

// NewRootCommand builds the cgmerge command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cgmerge",
		Short: "Merge a focal artifact's partial call graph against its dependency closure",
		Long: `cgmerge resolves virtual, interface, and constructor-chain invocation
sites in a single artifact's partial call graph against the universal
class hierarchy and type dictionary of its dependency closure,
producing a fully resolved call graph.`,
	}

	mergeCmd := &cobra.Command{
		Use:   "merge <focal-coordinate> <dependency-coordinate>...",
		Short: "Resolve one focal artifact's partial call graph",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMerge,
	}
	mergeCmd.Flags().String("config", "", "Path to a cgmerge YAML config file")
	mergeCmd.Flags().Bool("json", false, "Print the resolved graph and report as JSON")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cgmerge %s\n", version)
		},
	}

	rootCmd.AddCommand(mergeCmd, versionCmd)
	return rootCmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	focalCoordinate, depCoordinates := args[0], args[1:]

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	pg, err := store.OpenPostgres(cfg.Postgres.DSN, cfg.Forge)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer pg.Close()

	graphs, err := store.OpenBadgerGraphs(cfg.Badger.Dir)
	if err != nil {
		return fmt.Errorf("open badger graph store: %w", err)
	}
	defer graphs.Close()

	m := &merge.Merger{
		Dependencies: pg,
		Graphs:       graphs,
		EdgeMeta:     pg,
		Logger:       logger,
		Options:      cfg.Options(),
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.MergeTimeout)
	defer cancel()

	start := time.Now()
	result, err := m.Merge(ctx, focalCoordinate, depCoordinates)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordDuration(cfg.Forge, outcome, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	metrics.RecordReport(cfg.Forge, cfg.DynamicSitePolicy,
		result.Report.DependenciesDropped, result.Report.CallablesDropped,
		result.Report.DynamicSitesUnresolved, result.Report.SitesResolvedZero)

	if cfg.Neo4j.Enabled {
		if err := exportToNeo4j(ctx, cfg, pg, result); err != nil {
			return fmt.Errorf("export to neo4j: %w", err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Graph.Serialize())
	}
	fmt.Fprintf(os.Stdout, "resolved %d nodes, %d dependencies dropped, %d callables dropped, %d dynamic sites unresolved\n",
		len(result.Graph.Nodes()), result.Report.DependenciesDropped, result.Report.CallablesDropped, result.Report.DynamicSitesUnresolved)
	return nil
}

func exportToNeo4j(ctx context.Context, cfg config.Config, pg *store.Postgres, result *merge.Result) error {
	exp, err := neo4jexport.New(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, nil)
	if err != nil {
		return err
	}
	defer exp.Close(ctx)

	callables, err := pg.UrisOf(ctx, result.Graph.Nodes())
	if err != nil {
		return err
	}
	uris := make(map[model.CallableId]string, len(callables))
	for _, c := range callables {
		uris[c.ID] = c.URI
	}

	return exp.Export(ctx, result.Graph, uris, cfg.Neo4j.Clean)
}
