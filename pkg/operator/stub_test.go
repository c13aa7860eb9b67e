package operator

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/orneryd/nornicflow/pkg/graph"
)

// stubGraph serves canned matches and counts backend activity.
type stubGraph struct {
	edges    map[graph.ID][]*graph.Edge
	vertices map[graph.ID][]*graph.Vertex
	details  map[graph.ID]map[string]any

	prepareErr error
	execErr    error
	pullErr    error

	edgePrepares   atomic.Int32
	vertexPrepares atomic.Int32
	execs          atomic.Int32
	pulls          atomic.Int32
}

func newStubGraph() *stubGraph {
	return &stubGraph{
		edges:    map[graph.ID][]*graph.Edge{},
		vertices: map[graph.ID][]*graph.Vertex{},
		details:  map[graph.ID]map[string]any{},
	}
}

var errStubBackend = errors.New("stub backend failure")

func (g *stubGraph) PrepareExploreEdge(dir graph.Direction, params *graph.QueryParams) (graph.Statement[*graph.Edge], error) {
	g.edgePrepares.Add(1)
	if err := graph.CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	if g.prepareErr != nil {
		return nil, g.prepareErr
	}
	return graph.StatementFunc[*graph.Edge](func(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Edge, error], error) {
		g.execs.Add(1)
		if g.execErr != nil {
			return nil, g.execErr
		}
		return stubSeq(g, g.edges[id]), nil
	}), nil
}

func (g *stubGraph) PrepareExploreVertex(dir graph.Direction, params *graph.QueryParams) (graph.Statement[*graph.Vertex], error) {
	g.vertexPrepares.Add(1)
	if err := graph.CheckPrepare(dir, params); err != nil {
		return nil, err
	}
	if g.prepareErr != nil {
		return nil, g.prepareErr
	}
	return graph.StatementFunc[*graph.Vertex](func(ctx context.Context, id graph.ID) (iter.Seq2[*graph.Vertex, error], error) {
		g.execs.Add(1)
		if g.execErr != nil {
			return nil, g.execErr
		}
		return stubSeq(g, g.vertices[id]), nil
	}), nil
}

func (g *stubGraph) GetVertex(ctx context.Context, id graph.ID, params *graph.QueryParams) (*graph.Vertex, error) {
	g.execs.Add(1)
	props, ok := g.details[id]
	if !ok {
		return nil, errStubBackend
	}
	return &graph.Vertex{ID: id, Label: "Person", Details: params.Project(props)}, nil
}

func stubSeq[T any](g *stubGraph, items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			g.pulls.Add(1)
			if g.pullErr != nil {
				var zero T
				yield(zero, g.pullErr)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func vertex(id graph.ID) *graph.Vertex {
	return graph.NewVertex(id, "Person")
}

func edge(id, src, dst graph.ID) *graph.Edge {
	return &graph.Edge{ID: id, Label: "KNOWS", SrcID: src, DstID: dst, SrcLabel: "Person", DstLabel: "Person", FromSrc: true, Details: graph.EmptyDetails()}
}
