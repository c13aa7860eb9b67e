// Package pggraph provides a graph.Graph backed by PostgreSQL.
//
// Vertices and edges live in two tables (see EnsureSchema). Labels and, when
// no filter is set, the limit are pushed down into SQL; filters are
// evaluated in Go against the scanned rows. Rows are scanned as the
// statement's sequence is pulled, so stopping early stops the scan.
package pggraph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orneryd/nornicflow/pkg/graph"
	"github.com/orneryd/nornicflow/pkg/metrics"
	"github.com/orneryd/nornicflow/pkg/storage"
)

// Querier is the subset of pgxpool.Pool the graph needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Graph explores the nf_vertices and nf_edges tables.
type Graph struct {
	db Querier
}

// New wraps db.
func New(db Querier) *Graph {
	return &Graph{db: db}
}

// Open connects a pool to databaseURL and verifies it answers.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	cfg.ConnConfig.RuntimeParams["statement_timeout"] = "30000"
	cfg.MaxConns = 16
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nf_vertices (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	properties JSONB NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS nf_edges (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	src_id     TEXT NOT NULL REFERENCES nf_vertices (id) ON DELETE CASCADE,
	dst_id     TEXT NOT NULL REFERENCES nf_vertices (id) ON DELETE CASCADE,
	properties JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS nf_edges_src_idx ON nf_edges (src_id, label);
CREATE INDEX IF NOT EXISTS nf_edges_dst_idx ON nf_edges (dst_id, label);
`

// EnsureSchema creates the tables and indexes if they are missing.
func (g *Graph) EnsureSchema(ctx context.Context) error {
	if _, err := g.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Import upserts nodes, then edges. A node's primary label becomes the
// vertex label and an edge's type its label.
func (g *Graph) Import(ctx context.Context, nodes []*storage.Node, edges []*storage.Edge) error {
	for _, n := range nodes {
		if _, err := g.db.Exec(ctx, upsertVertexSQL, string(n.ID), n.PrimaryLabel(), props(n.Properties)); err != nil {
			return fmt.Errorf("importing vertex %s: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		if _, err := g.db.Exec(ctx, upsertEdgeSQL, string(e.ID), e.Type, string(e.StartNode), string(e.EndNode), props(e.Properties)); err != nil {
			return fmt.Errorf("importing edge %s: %w", e.ID, err)
		}
	}
	return nil
}

const (
	upsertVertexSQL = `INSERT INTO nf_vertices (id, label, properties) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, properties = EXCLUDED.properties`
	upsertEdgeSQL = `INSERT INTO nf_edges (id, label, src_id, dst_id, properties) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, src_id = EXCLUDED.src_id,
		dst_id = EXCLUDED.dst_id, properties = EXCLUDED.properties`
	existsSQL    = `SELECT EXISTS(SELECT 1 FROM nf_vertices WHERE id = $1)`
	getVertexSQL = `SELECT id, label, properties FROM nf_vertices WHERE id = $1`
)

func props(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

// PrepareExploreEdge builds the adjacency query once; Exec only binds the
// source id.
func (g *Graph) PrepareExploreEdge(dir graph.Direction, params *graph.QueryParams) (graph.Statement[*graph.Edge], error) {
	if err := graph.CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	params = params.Clone()
	q := edgeQuery(dir, params)
	metrics.StatementPrepares.WithLabelValues("postgres", "explore_edge").Inc()

	return graph.StatementFunc[*graph.Edge](func(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Edge, error], error) {
		metrics.StatementExecs.WithLabelValues("explore_edge").Inc()
		if err := g.checkSource(ctx, id); err != nil {
			return nil, err
		}
		return scanSeq[*graph.Edge](ctx, g.db, q, id, params, scanEdge), nil
	}), nil
}

// PrepareExploreVertex joins each adjacent edge to its far endpoint. Labels
// restrict the edges; the filter applies to the neighbour.
func (g *Graph) PrepareExploreVertex(dir graph.Direction, params *graph.QueryParams) (graph.Statement[*graph.Vertex], error) {
	if err := graph.CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	params = params.Clone()
	q := vertexQuery(dir, params)
	metrics.StatementPrepares.WithLabelValues("postgres", "explore_vertex").Inc()

	return graph.StatementFunc[*graph.Vertex](func(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Vertex, error], error) {
		metrics.StatementExecs.WithLabelValues("explore_vertex").Inc()
		if err := g.checkSource(ctx, id); err != nil {
			return nil, err
		}
		return scanSeq[*graph.Vertex](ctx, g.db, q, id, params, scanVertex), nil
	}), nil
}

// GetVertex loads one vertex. Nil params load every property.
func (g *Graph) GetVertex(ctx context.Context, id graph.ID, params *graph.QueryParams) (*graph.Vertex, error) {
	metrics.StatementExecs.WithLabelValues("get_vertex").Inc()
	if params == nil {
		params = &graph.QueryParams{AllColumns: true}
	}
	var (
		vid, label string
		properties map[string]any
	)
	err := g.db.QueryRow(ctx, getVertexSQL, string(id)).Scan(&vid, &label, &properties)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vertex %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading vertex %s: %w", id, err)
	}
	return &graph.Vertex{ID: graph.ID(vid), Label: label, Details: params.Project(properties)}, nil
}

func (g *Graph) checkSource(ctx context.Context, id graph.ID) error {
	if id == "" {
		return storage.ErrInvalidID
	}
	var exists bool
	if err := g.db.QueryRow(ctx, existsSQL, string(id)).Scan(&exists); err != nil {
		return fmt.Errorf("checking vertex existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("vertex %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// scanner turns a row into a result plus the element its filter sees.
type scanner[T any] func(rows pgx.Rows, params *graph.QueryParams) (T, graph.Element, error)

// scanSeq runs q when first pulled and scans one row per yielded result.
func scanSeq[T any](ctx context.Context, db Querier, q query, id graph.ID, params *graph.QueryParams, scan scanner[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := db.Query(ctx, q.sql, q.args(id)...)
		if err != nil {
			yield(zero, fmt.Errorf("querying adjacency of %s: %w", id, err))
			return
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			v, elem, err := scan(rows, params)
			if err != nil {
				yield(zero, fmt.Errorf("scanning adjacency row: %w", err))
				return
			}
			ok, err := params.MatchesFilter(elem)
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(v, nil) {
				return
			}
			n++
			if params.Exhausted(n) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("iterating adjacency rows: %w", err))
		}
	}
}

func scanEdge(rows pgx.Rows, params *graph.QueryParams) (*graph.Edge, graph.Element, error) {
	var (
		e          graph.Edge
		id, label  string
		src, dst   string
		srcLabel   string
		dstLabel   string
		properties map[string]any
	)
	if err := rows.Scan(&id, &label, &src, &dst, &srcLabel, &dstLabel, &properties, &e.FromSrc); err != nil {
		return nil, nil, err
	}
	e.ID = graph.ID(id)
	e.Label = label
	e.SrcID, e.DstID = graph.ID(src), graph.ID(dst)
	e.SrcLabel, e.DstLabel = srcLabel, dstLabel
	e.Details = params.Project(properties)
	return &e, graph.PropertyElement{Label: label, Properties: properties}, nil
}

func scanVertex(rows pgx.Rows, params *graph.QueryParams) (*graph.Vertex, graph.Element, error) {
	var (
		id, label  string
		properties map[string]any
	)
	if err := rows.Scan(&id, &label, &properties); err != nil {
		return nil, nil, err
	}
	v := &graph.Vertex{ID: graph.ID(id), Label: label, Details: params.Project(properties)}
	return v, graph.PropertyElement{Label: label, Properties: properties}, nil
}

var _ graph.Graph = (*Graph)(nil)
