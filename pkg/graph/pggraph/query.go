package pggraph

import (
	"strconv"
	"strings"

	"github.com/orneryd/nornicflow/pkg/graph"
)

// query is SQL prepared for one statement. $1 is always the source id.
type query struct {
	sql    string
	labels []string
	limit  int
}

func (q query) args(id graph.ID) []any {
	args := []any{string(id)}
	if len(q.labels) > 0 {
		args = append(args, q.labels)
	}
	if q.limit > 0 {
		args = append(args, q.limit)
	}
	return args
}

// adjacencySQL selects the edges touching $1. Outgoing rows come first
// under Both, and a self-loop appears once per side.
func adjacencySQL(dir graph.Direction, withLabels bool) string {
	side := func(fromSrc bool) string {
		anchor, flag := "e.dst_id", "FALSE"
		if fromSrc {
			anchor, flag = "e.src_id", "TRUE"
		}
		var b strings.Builder
		b.WriteString("SELECT e.id, e.label, e.src_id, e.dst_id, ")
		b.WriteString("COALESCE(s.label, '') AS src_label, COALESCE(d.label, '') AS dst_label, ")
		b.WriteString("e.properties, " + flag + " AS from_src ")
		b.WriteString("FROM nf_edges e ")
		b.WriteString("LEFT JOIN nf_vertices s ON s.id = e.src_id ")
		b.WriteString("LEFT JOIN nf_vertices d ON d.id = e.dst_id ")
		b.WriteString("WHERE " + anchor + " = $1")
		if withLabels {
			b.WriteString(" AND e.label = ANY($2)")
		}
		return b.String()
	}

	switch dir {
	case graph.Out:
		return side(true)
	case graph.In:
		return side(false)
	default:
		return side(true) + " UNION ALL " + side(false)
	}
}

// pushLimit reports the limit SQL can apply. A filter is evaluated after
// scanning, so with one set the limit is applied in Go instead.
func pushLimit(params *graph.QueryParams) int {
	if params.HasFilter() {
		return 0
	}
	return params.Limit
}

func limitClause(q *query) string {
	if q.limit == 0 {
		return ""
	}
	n := 2
	if len(q.labels) > 0 {
		n = 3
	}
	return " LIMIT $" + strconv.Itoa(n)
}

func edgeQuery(dir graph.Direction, params *graph.QueryParams) query {
	q := query{labels: params.Labels, limit: pushLimit(params)}
	q.sql = "SELECT id, label, src_id, dst_id, src_label, dst_label, properties, from_src FROM (" +
		adjacencySQL(dir, len(q.labels) > 0) + ") AS adj ORDER BY from_src DESC, id" + limitClause(&q)
	return q
}

func vertexQuery(dir graph.Direction, params *graph.QueryParams) query {
	q := query{labels: params.Labels, limit: pushLimit(params)}
	q.sql = "SELECT v.id, v.label, v.properties FROM (" +
		adjacencySQL(dir, len(q.labels) > 0) + ") AS adj " +
		"JOIN nf_vertices v ON v.id = CASE WHEN adj.from_src THEN adj.dst_id ELSE adj.src_id END " +
		"ORDER BY adj.from_src DESC, adj.id" + limitClause(&q)
	return q
}
