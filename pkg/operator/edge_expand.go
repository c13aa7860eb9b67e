package operator

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/nornicflow/pkg/graph"
	"github.com/orneryd/nornicflow/pkg/metrics"
	"github.com/orneryd/nornicflow/pkg/plan"
	"github.com/orneryd/nornicflow/pkg/record"
)

// Mode is the backend access pattern an EdgeExpandOperator uses.
type Mode uint8

const (
	// EdgeMode emits the adjacent edges.
	EdgeMode Mode = iota
	// FilteredVertexMode explores edges, so the filter can be pushed down.
	// From a vertex it emits each edge's far endpoint as a vertex with
	// deferred details; a path is extended by the edge itself.
	FilteredVertexMode
	// PlainVertexMode explores neighbouring vertices directly.
	PlainVertexMode
)

func (m Mode) String() string {
	switch m {
	case EdgeMode:
		return "edge"
	case FilteredVertexMode:
		return "filtered_vertex"
	case PlainVertexMode:
		return "plain_vertex"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// SelectMode picks the access pattern for an expansion.
func SelectMode(isEdge bool, params *graph.QueryParams) Mode {
	switch {
	case isEdge:
		return EdgeMode
	case params.HasFilter():
		return FilteredVertexMode
	default:
		return PlainVertexMode
	}
}

// EdgeExpandOperator expands the vertex or path found at a start tag.
//
// Exactly one of edges or vertices is set, depending on mode. The operator
// is immutable once generated and safe to Apply from many goroutines.
type EdgeExpandOperator struct {
	startTag *record.KeyID
	alias    *record.KeyID
	mode     Mode
	edges    graph.Statement[*graph.Edge]
	vertices graph.Statement[*graph.Vertex]
}

func (op *EdgeExpandOperator) Mode() Mode { return op.mode }

// Apply expands input. Source lookup and statement execution happen before
// Apply returns; matches are fetched lazily as the sequence is pulled.
//
// A vertex entry yields one record per match, each a copy of input whose
// head is the match (also stored under the alias, if any). A path entry
// yields one record per match holding the path extended by that match, under
// the head and the start tag.
func (op *EdgeExpandOperator) Apply(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error) {
	entry, ok := input.Get(op.startTag)
	if !ok {
		return nil, getTagError(fmt.Sprintf("get start vertex at %v failed", tagField(op.startTag, "head")))
	}

	switch entry.Kind() {
	case record.KindVertex:
		v, _ := entry.AsVertex()
		if v == nil {
			return nil, unexpectedDataError("start vertex entry holds no vertex", nil)
		}
		return op.expandVertex(ctx, input, v.ID)
	case record.KindPath:
		path, _ := entry.AsPath()
		end, err := path.End()
		if err != nil {
			return nil, unexpectedDataError("get path end failed in path expand", err)
		}
		return op.expandPath(ctx, input, path, end.ID)
	default:
		return nil, unexpectedDataError(fmt.Sprintf("cannot expand from %s entry %s", entry.Kind(), entry), nil)
	}
}

func (op *EdgeExpandOperator) expandVertex(ctx context.Context, input record.Record, id graph.ID) (iter.Seq2[record.Record, error], error) {
	switch op.mode {
	case EdgeMode:
		edges, err := op.execEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		return record.ExpandIter(input, op.alias, edges, record.EdgeEntry), nil
	case FilteredVertexMode:
		edges, err := op.execEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		return record.ExpandIter(input, op.alias, edges, func(e *graph.Edge) record.Entry {
			return record.VertexEntry(neighborOf(e))
		}), nil
	default:
		vertices, err := op.execVertices(ctx, id)
		if err != nil {
			return nil, err
		}
		return record.ExpandIter(input, op.alias, vertices, record.VertexEntry), nil
	}
}

func (op *EdgeExpandOperator) expandPath(ctx context.Context, input record.Record, path graph.Path, id graph.ID) (iter.Seq2[record.Record, error], error) {
	switch op.mode {
	case EdgeMode, FilteredVertexMode:
		// The path records the matched edge; Path.End resolves its far
		// endpoint for the next hop.
		edges, err := op.execEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		return record.PathExpandIter(input, op.startTag, path, edges, graph.EdgeElement), nil
	default:
		vertices, err := op.execVertices(ctx, id)
		if err != nil {
			return nil, err
		}
		return record.PathExpandIter(input, op.startTag, path, vertices, graph.VertexElement), nil
	}
}

func (op *EdgeExpandOperator) execEdges(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Edge, error], error) {
	msg := fmt.Sprintf("explore edges of %s", id)
	seq, err := op.edges.Exec(ctx, id)
	if err != nil {
		return nil, backendError(msg, err)
	}
	return backendSeq(msg, seq), nil
}

func (op *EdgeExpandOperator) execVertices(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Vertex, error], error) {
	msg := fmt.Sprintf("explore neighbours of %s", id)
	seq, err := op.vertices.Exec(ctx, id)
	if err != nil {
		return nil, backendError(msg, err)
	}
	return backendSeq(msg, seq), nil
}

// neighborOf builds the far endpoint of e without loading its details.
func neighborOf(e *graph.Edge) *graph.Vertex {
	return &graph.Vertex{ID: e.OtherID(), Label: e.OtherLabel(), Details: graph.EmptyDetails()}
}

// GenEdgeExpand generates an EdgeExpandOperator from a plan node.
//
// Tags, direction and parameters are resolved first, then the backend is
// acquired and asked to prepare the one statement the selected mode needs.
// Any failure is a *GenError.
func GenEdgeExpand(node *plan.EdgeExpand, env BuildEnv) (*EdgeExpandOperator, error) {
	if node == nil {
		return nil, genError(GenPlanDecode, "edge expand node is nil", nil)
	}

	startTag, err := env.resolve("start tag", node.VTag)
	if err != nil {
		return nil, err
	}
	alias, err := env.resolve("alias", node.Alias)
	if err != nil {
		return nil, err
	}

	dir, err := node.Direction.Decode()
	if err != nil {
		return nil, genError(GenPlanDecode, "decode direction", err)
	}
	params, err := node.Params.Decode()
	if err != nil {
		return nil, genError(GenPlanDecode, "decode query params", err)
	}

	g, err := env.backend()
	if err != nil {
		return nil, err
	}

	op := &EdgeExpandOperator{
		startTag: startTag,
		alias:    alias,
		mode:     SelectMode(node.IsEdge, params),
	}
	switch op.mode {
	case EdgeMode, FilteredVertexMode:
		op.edges, err = g.PrepareExploreEdge(dir, params)
	default:
		op.vertices, err = g.PrepareExploreVertex(dir, params)
	}
	if err != nil {
		return nil, genError(GenBackendPrepare, fmt.Sprintf("prepare %s statement", op.mode), err)
	}

	env.log().WithFields(logrus.Fields{
		"start_tag":  tagField(startTag, "head"),
		"alias":      tagField(alias, "none"),
		"direction":  dir.String(),
		"mode":       op.mode.String(),
		"labels":     params.Labels,
		"limit":      params.Limit,
		"has_filter": params.HasFilter(),
	}).Debug("generated edge expand operator")
	metrics.OperatorsBuilt.WithLabelValues(op.mode.String()).Inc()

	return op, nil
}
