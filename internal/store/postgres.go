package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/opencallgraph/merger/internal/cha"
	"github.com/opencallgraph/merger/internal/model"
	"github.com/opencallgraph/merger/internal/typedict"
)

// Postgres serves DependencyStore and EdgeMetadataStore from a relational
// schema mirroring the original metadata database: packages,
// package_versions, callables, modules, edges. It is the production
// backend for "the persistent metadata store" spec.md §1 treats as an
// external collaborator — the merger only ever talks to it through the
// DependencyStore/EdgeMetadataStore interfaces.
//
// Expected schema (forge is fixed per deployment, e.g. "mvn"):
//
//	packages(id, package_name, forge)
//	package_versions(id, package_id, version)
//	callables(id, module_id, fasten_uri, is_external)
//	modules(id, package_version_id, namespace, super_classes jsonb, super_interfaces jsonb)
//	edges(source_id, target_id, site_line, kind, receiver_type) -- one row per invocation site
type Postgres struct {
	db    *sql.DB
	forge string
}

// OpenPostgres opens a connection pool against dsn (a libpq connection
// string) scoped to forge (e.g. "mvn").
func OpenPostgres(dsn, forge string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{db: db, forge: forge}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ResolveIds(ctx context.Context, coordinates []string) (map[DependencyId]struct{}, error) {
	seen := make(map[string]struct{}, len(coordinates))
	out := make(map[DependencyId]struct{})
	for _, raw := range coordinates {
		coord, err := model.ParseCoordinate(raw)
		if err != nil {
			continue // malformed dependency coordinates are dropped, not fatal
		}
		key := coord.PackageName() + "@" + coord.Version
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var id uint64
		err = p.db.QueryRowContext(ctx, `
			SELECT pv.id FROM package_versions pv
			JOIN packages pkg ON pv.package_id = pkg.id
			WHERE pkg.package_name = $1 AND pv.version = $2 AND pkg.forge = $3`,
			coord.PackageName(), coord.Version, p.forge).Scan(&id)
		if err == sql.ErrNoRows {
			continue // missing coordinates are silently dropped
		}
		if err != nil {
			return nil, &model.StoreUnavailableError{Store: "postgres.ResolveIds", Cause: err}
		}
		out[DependencyId(id)] = struct{}{}
	}
	return out, nil
}

func (p *Postgres) CallablesOf(ctx context.Context, deps map[DependencyId]struct{}, onFailed func(DependencyId, error)) ([]model.CallableId, error) {
	var out []model.CallableId
	for dep := range deps {
		rows, err := p.db.QueryContext(ctx, `
			SELECT id FROM callables
			WHERE module_id IN (SELECT id FROM modules WHERE package_version_id = $1)
			AND is_external = false`, uint64(dep))
		if err != nil {
			if onFailed != nil {
				onFailed(dep, err)
			}
			continue
		}
		func() {
			defer rows.Close()
			for rows.Next() {
				var id uint64
				if err := rows.Scan(&id); err != nil {
					if onFailed != nil {
						onFailed(dep, err)
					}
					return
				}
				out = append(out, model.CallableId(id))
			}
		}()
	}
	return out, nil
}

func (p *Postgres) UrisOf(ctx context.Context, callables []model.CallableId) ([]typedict.Callable, error) {
	if len(callables) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(callables))
	for i, c := range callables {
		ids[i] = int64(c)
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, fasten_uri FROM callables WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, &model.StoreUnavailableError{Store: "postgres.UrisOf", Cause: err}
	}
	defer rows.Close()

	var out []typedict.Callable
	for rows.Next() {
		var id uint64
		var uri string
		if err := rows.Scan(&id, &uri); err != nil {
			return nil, &model.StoreUnavailableError{Store: "postgres.UrisOf", Cause: err}
		}
		out = append(out, typedict.Callable{ID: model.CallableId(id), URI: uri})
	}
	return out, rows.Err()
}

func (p *Postgres) HierarchyOf(ctx context.Context, callables []model.CallableId) ([]cha.HierarchyRow, error) {
	if len(callables) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(callables))
	for i, c := range callables {
		ids[i] = int64(c)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT m.namespace, m.super_classes, m.super_interfaces
		FROM modules m
		WHERE m.id IN (SELECT DISTINCT module_id FROM callables WHERE id = ANY($1))`, ids)
	if err != nil {
		return nil, &model.StoreUnavailableError{Store: "postgres.HierarchyOf", Cause: err}
	}
	defer rows.Close()

	var out []cha.HierarchyRow
	for rows.Next() {
		var namespace string
		var superClassesJSON, superInterfacesJSON []byte
		if err := rows.Scan(&namespace, &superClassesJSON, &superInterfacesJSON); err != nil {
			return nil, &model.StoreUnavailableError{Store: "postgres.HierarchyOf", Cause: err}
		}
		row := cha.HierarchyRow{TypeNamespace: namespace}
		row.SuperClasses = decodeTypeURIList(superClassesJSON)
		row.SuperInterfaces = decodeTypeURIList(superInterfacesJSON)
		out = append(out, row)
	}
	return out, rows.Err()
}

func decodeTypeURIList(raw []byte) []model.TypeURI {
	if len(raw) == 0 {
		return nil
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil
	}
	out := make([]model.TypeURI, len(ss))
	for i, s := range ss {
		out[i] = model.TypeURI(s)
	}
	return out
}

// Edges implements EdgeMetadataStore against the same Postgres schema.
// It runs one query per requested (source, target) pair; the pairs are
// not combined into a single database query.
func (p *Postgres) Edges(ctx context.Context, pairs []Pair) ([]EdgeMetadata, error) {
	out := make([]EdgeMetadata, 0, len(pairs))
	for _, pair := range pairs {
		rows, err := p.db.QueryContext(ctx, `
			SELECT site_line, kind, receiver_type
			FROM edges
			WHERE source_id = $1 AND target_id = $2`, uint64(pair.Source), uint64(pair.Target))
		if err != nil {
			return nil, &model.StoreUnavailableError{Store: "postgres.Edges", Cause: err}
		}
		meta := EdgeMetadata{Source: pair.Source, Target: pair.Target}
		for rows.Next() {
			var line int32
			var kind uint8
			var receiver string
			if err := rows.Scan(&line, &kind, &receiver); err != nil {
				rows.Close()
				return nil, &model.StoreUnavailableError{Store: "postgres.Edges", Cause: err}
			}
			meta.Sites = append(meta.Sites, model.InvocationSite{
				SourceLine:   line,
				Kind:         model.ParseInvocationKind(kind),
				ReceiverType: model.TypeURI(receiver),
			})
		}
		rows.Close()
		out = append(out, meta)
	}
	return out, nil
}
