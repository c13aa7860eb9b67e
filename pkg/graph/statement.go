package graph

import (
	"context"
	"fmt"
	"iter"
	"sync"
)

// Statement is a prepared, reusable exploration bound to a direction and a
// parameter set. Exec may be called concurrently from many goroutines.
//
// Exec validates the source and returns a lazy sequence. Backend work for
// the matches themselves happens only as the sequence is pulled, and stops
// when the caller stops ranging.
type Statement[T any] interface {
	Exec(ctx context.Context, id ID) (iter.Seq2[T, error], error)
}

// StatementFunc adapts a function to Statement.
type StatementFunc[T any] func(ctx context.Context, id ID) (iter.Seq2[T, error], error)

func (f StatementFunc[T]) Exec(ctx context.Context, id ID) (iter.Seq2[T, error], error) {
	return f(ctx, id)
}

// Graph is a backend able to prepare exploration statements.
//
// Prepare methods fail fast on unsupported directions or parameters so that
// misconfiguration surfaces at plan build time, never per record.
type Graph interface {
	// PrepareExploreEdge prepares a statement yielding the edges adjacent to a
	// source vertex.
	PrepareExploreEdge(dir Direction, params *QueryParams) (Statement[*Edge], error)

	// PrepareExploreVertex prepares a statement yielding the neighbours of a
	// source vertex.
	PrepareExploreVertex(dir Direction, params *QueryParams) (Statement[*Vertex], error)

	// GetVertex loads one vertex with the properties selected by params.
	// Nil params load every property.
	GetVertex(ctx context.Context, id ID, params *QueryParams) (*Vertex, error)
}

var (
	registryMu sync.RWMutex
	registered Graph
)

// Register installs g as the process-wide graph backend.
func Register(g Graph) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = g
}

// Default returns the registered backend, if any.
func Default() (Graph, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registered, registered != nil
}

// Reset removes the registered backend.
func Reset() {
	Register(nil)
}

// CheckPrepare is the argument validation every backend applies before
// preparing a statement.
func CheckPrepare(dir Direction, params *QueryParams) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, dir)
	}
	return params.Validate()
}
