package graph

import (
	"context"
	"fmt"
	"iter"

	"github.com/orneryd/nornicflow/pkg/metrics"
	"github.com/orneryd/nornicflow/pkg/storage"
)

// StorageGraph is a Graph over any streaming storage engine.
//
// Edge labels are the storage relationship types; vertex labels are the
// primary (first) node label. Statements hold no per-call state and share
// the engine, whose implementations are all thread-safe.
type StorageGraph struct {
	engine storage.StreamingEngine
}

// NewStorageGraph wraps engine.
func NewStorageGraph(engine storage.StreamingEngine) *StorageGraph {
	return &StorageGraph{engine: engine}
}

// PrepareExploreEdge returns a statement that streams the adjacent edges of a
// vertex. Both walks outgoing edges first, then incoming ones. Labels and the
// filter are checked per edge before it counts against the limit. Both
// endpoint labels are filled in, at one node lookup per distinct neighbour.
func (g *StorageGraph) PrepareExploreEdge(dir Direction, params *QueryParams) (Statement[*Edge], error) {
	if err := CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	params = params.Clone()
	metrics.StatementPrepares.WithLabelValues("storage", "explore_edge").Inc()

	return StatementFunc[*Edge](func(ctx context.Context, id ID) (iter.Seq2[*Edge, error], error) {
		metrics.StatementExecs.WithLabelValues("explore_edge").Inc()
		src, err := g.source(id)
		if err != nil {
			return nil, err
		}
		return g.exploreEdges(ctx, src, dir, params, true), nil
	}), nil
}

// PrepareExploreVertex returns a statement that streams the neighbours of a
// vertex. Labels restrict the traversed edges; the filter applies to the
// neighbour. Each neighbour costs one node lookup, paid when it is pulled.
func (g *StorageGraph) PrepareExploreVertex(dir Direction, params *QueryParams) (Statement[*Vertex], error) {
	if err := CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	params = params.Clone()
	edgeParams := &QueryParams{Labels: params.Labels}
	metrics.StatementPrepares.WithLabelValues("storage", "explore_vertex").Inc()

	return StatementFunc[*Vertex](func(ctx context.Context, id ID) (iter.Seq2[*Vertex, error], error) {
		metrics.StatementExecs.WithLabelValues("explore_vertex").Inc()
		src, err := g.source(id)
		if err != nil {
			return nil, err
		}
		edges := g.exploreEdges(ctx, src, dir, edgeParams, false)
		return func(yield func(*Vertex, error) bool) {
			n := 0
			for e, err := range edges {
				if err != nil {
					yield(nil, err)
					return
				}
				node, err := g.engine.GetNode(storage.NodeID(e.OtherID()))
				if err != nil {
					yield(nil, fmt.Errorf("neighbour %s of %s: %w", e.OtherID(), id, err))
					return
				}
				ok, err := params.MatchesFilter(PropertyElement{Label: node.PrimaryLabel(), Properties: node.Properties})
				if err != nil {
					yield(nil, err)
					return
				}
				if !ok {
					continue
				}
				v := &Vertex{
					ID:      ID(node.ID),
					Label:   node.PrimaryLabel(),
					Details: params.Project(node.Properties),
				}
				if !yield(v, nil) {
					return
				}
				n++
				if params.Exhausted(n) {
					return
				}
			}
		}, nil
	}), nil
}

// GetVertex loads a single vertex.
func (g *StorageGraph) GetVertex(ctx context.Context, id ID, params *QueryParams) (*Vertex, error) {
	metrics.StatementExecs.WithLabelValues("get_vertex").Inc()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node, err := g.source(id)
	if err != nil {
		return nil, err
	}
	details := NewDetails(node.Properties)
	if params != nil {
		details = params.Project(node.Properties)
	}
	return &Vertex{ID: ID(node.ID), Label: node.PrimaryLabel(), Details: details}, nil
}

func (g *StorageGraph) source(id ID) (*storage.Node, error) {
	if id == "" {
		return nil, storage.ErrInvalidID
	}
	node, err := g.engine.GetNode(storage.NodeID(id))
	if err != nil {
		return nil, fmt.Errorf("vertex %s: %w", id, err)
	}
	return node, nil
}

// exploreEdges streams the matching edges of src. With farLabels unset the
// far endpoint label is left empty and no extra lookups are made.
func (g *StorageGraph) exploreEdges(ctx context.Context, src *storage.Node, dir Direction, params *QueryParams, farLabels bool) iter.Seq2[*Edge, error] {
	return func(yield func(*Edge, error) bool) {
		n := 0
		labels := make(map[storage.NodeID]string)
		for _, fromSrc := range sides(dir) {
			adjacent := g.engine.StreamIncomingEdges(ctx, src.ID)
			if fromSrc {
				adjacent = g.engine.StreamOutgoingEdges(ctx, src.ID)
			}
			for se, err := range adjacent {
				if err != nil {
					yield(nil, err)
					return
				}
				if !params.MatchesLabel(se.Type) {
					continue
				}
				ok, err := params.MatchesFilter(PropertyElement{Label: se.Type, Properties: se.Properties})
				if err != nil {
					yield(nil, err)
					return
				}
				if !ok {
					continue
				}
				var far string
				if farLabels {
					far, err = g.farLabel(se, fromSrc, labels)
					if err != nil {
						yield(nil, err)
						return
					}
				}
				if !yield(toEdge(se, src, fromSrc, far, params), nil) {
					return
				}
				n++
				if params.Exhausted(n) {
					return
				}
			}
		}
	}
}

// sides lists, per direction, whether edges are walked from their source
// (outgoing) or from their destination (incoming).
func sides(dir Direction) []bool {
	switch dir {
	case Out:
		return []bool{true}
	case In:
		return []bool{false}
	default:
		return []bool{true, false}
	}
}

// farLabel returns the primary label of the endpoint of se opposite the
// explored node, remembering it in seen.
func (g *StorageGraph) farLabel(se *storage.Edge, fromSrc bool, seen map[storage.NodeID]string) (string, error) {
	id := se.StartNode
	if fromSrc {
		id = se.EndNode
	}
	if label, ok := seen[id]; ok {
		return label, nil
	}
	node, err := g.engine.GetNode(id)
	if err != nil {
		return "", fmt.Errorf("endpoint %s of edge %s: %w", id, se.ID, err)
	}
	seen[id] = node.PrimaryLabel()
	return seen[id], nil
}

func toEdge(se *storage.Edge, src *storage.Node, fromSrc bool, farLabel string, params *QueryParams) *Edge {
	e := &Edge{
		ID:      ID(se.ID),
		Label:   se.Type,
		SrcID:   ID(se.StartNode),
		DstID:   ID(se.EndNode),
		FromSrc: fromSrc,
		Details: params.Project(se.Properties),
	}
	if fromSrc {
		e.SrcLabel, e.DstLabel = src.PrimaryLabel(), farLabel
	} else {
		e.SrcLabel, e.DstLabel = farLabel, src.PrimaryLabel()
	}
	return e
}

var _ Graph = (*StorageGraph)(nil)
