package storage

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engines returns a fresh instance of every StreamingEngine implementation.
func engines(t *testing.T) map[string]StreamingEngine {
	t.Helper()
	open := func() *BadgerEngine {
		b, err := NewBadgerEngineInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	}
	return map[string]StreamingEngine{
		"memory":     NewMemoryEngine(),
		"badger":     open(),
		"namespaced": NewNamespacedEngine(open(), "tenant"),
	}
}

func drain(t *testing.T, seq iter.Seq2[*Edge, error]) []EdgeID {
	t.Helper()
	var ids []EdgeID
	for e, err := range seq {
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	return ids
}

// seedTriangle builds a -> b -> c -> a.
func seedTriangle(t *testing.T, e Engine) {
	t.Helper()
	require.NoError(t, e.BulkCreateNodes([]*Node{
		{ID: "a", Labels: []string{"Person"}, Properties: map[string]any{"name": "A"}},
		{ID: "b", Labels: []string{"Person"}},
		{ID: "c", Labels: []string{"City", "Place"}},
	}))
	require.NoError(t, e.BulkCreateEdges([]*Edge{
		{ID: "ab", StartNode: "a", EndNode: "b", Type: "KNOWS", Properties: map[string]any{"since": int64(2010)}},
		{ID: "bc", StartNode: "b", EndNode: "c", Type: "LIVES_IN"},
		{ID: "ca", StartNode: "c", EndNode: "a", Type: "HOME_OF"},
	}))
}

func TestEngines_Nodes(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedTriangle(t, e)

			n, err := e.GetNode("a")
			require.NoError(t, err)
			assert.Equal(t, NodeID("a"), n.ID)
			assert.Equal(t, "A", n.Properties["name"])

			c, err := e.GetNode("c")
			require.NoError(t, err)
			assert.Equal(t, "City", c.PrimaryLabel())

			_, err = e.GetNode("zed")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = e.GetNode("")
			assert.ErrorIs(t, err, ErrInvalidID)

			assert.ErrorIs(t, e.CreateNode(&Node{ID: "a"}), ErrAlreadyExists)
			assert.ErrorIs(t, e.CreateNode(nil), ErrInvalidData)
			assert.ErrorIs(t, e.CreateNode(&Node{}), ErrInvalidID)
		})
	}
}

func TestEngines_Edges(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedTriangle(t, e)
			ctx := context.Background()

			assert.Equal(t, []EdgeID{"ab"}, drain(t, e.StreamOutgoingEdges(ctx, "a")))
			assert.Equal(t, []EdgeID{"ca"}, drain(t, e.StreamIncomingEdges(ctx, "a")))
			assert.Empty(t, drain(t, e.StreamOutgoingEdges(ctx, "nobody")))

			for edge, err := range e.StreamOutgoingEdges(ctx, "a") {
				require.NoError(t, err)
				assert.Equal(t, NodeID("a"), edge.StartNode)
				assert.Equal(t, NodeID("b"), edge.EndNode)
				assert.Equal(t, "KNOWS", edge.Type)
				assert.EqualValues(t, 2010, edge.Properties["since"])
			}

			assert.ErrorIs(t, e.CreateEdge(&Edge{ID: "ab", StartNode: "a", EndNode: "b"}), ErrAlreadyExists)
			assert.ErrorIs(t, e.CreateEdge(&Edge{ID: "ax", StartNode: "a", EndNode: "x"}), ErrInvalidEdge)
			assert.ErrorIs(t, e.CreateEdge(nil), ErrInvalidData)
			assert.ErrorIs(t, e.CreateEdge(&Edge{StartNode: "a", EndNode: "b"}), ErrInvalidID)

			for _, err := range e.StreamIncomingEdges(ctx, "") {
				assert.ErrorIs(t, err, ErrInvalidID)
			}
		})
	}
}

func TestEngines_FailedBatchWritesNothing(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.BulkCreateNodes([]*Node{{ID: "a"}, {ID: "a"}}), ErrAlreadyExists)
			_, err := e.GetNode("a")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, e.CreateNode(&Node{ID: "a"}))
			err = e.BulkCreateEdges([]*Edge{
				{ID: "aa", StartNode: "a", EndNode: "a"},
				{ID: "ax", StartNode: "a", EndNode: "x"},
			})
			assert.ErrorIs(t, err, ErrInvalidEdge)
			assert.Empty(t, drain(t, e.StreamOutgoingEdges(context.Background(), "a")))
		})
	}
}

func TestEngines_StreamStopsEarly(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.BulkCreateNodes([]*Node{{ID: "a"}, {ID: "b"}}))
			require.NoError(t, e.BulkCreateEdges([]*Edge{
				{ID: "e1", StartNode: "a", EndNode: "b"},
				{ID: "e2", StartNode: "a", EndNode: "b"},
			}))

			pulled := 0
			for _, err := range e.StreamOutgoingEdges(context.Background(), "a") {
				require.NoError(t, err)
				pulled++
				break
			}
			assert.Equal(t, 1, pulled)

			// An abandoned stream holds nothing that blocks later writes.
			require.NoError(t, e.CreateEdge(&Edge{ID: "e3", StartNode: "b", EndNode: "a"}))
		})
	}
}

func TestEngines_StreamCanceled(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedTriangle(t, e)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			calls := 0
			for edge, err := range e.StreamOutgoingEdges(ctx, "a") {
				calls++
				assert.Nil(t, edge)
				assert.ErrorIs(t, err, context.Canceled)
			}
			assert.Equal(t, 1, calls)
		})
	}
}

func TestEngines_Closed(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedTriangle(t, e)
			seq := e.StreamOutgoingEdges(context.Background(), "a")
			require.NoError(t, e.Close())

			_, err := e.GetNode("a")
			assert.ErrorIs(t, err, ErrStorageClosed)
			assert.ErrorIs(t, e.CreateNode(&Node{ID: "z"}), ErrStorageClosed)
			for _, err := range seq {
				assert.ErrorIs(t, err, ErrStorageClosed)
			}
		})
	}
}

func TestMemoryEngine_InsertionOrder(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "hub"}))
	for i := range 5 {
		leaf := NodeID(fmt.Sprintf("leaf-%d", i))
		require.NoError(t, engine.CreateNode(&Node{ID: leaf}))
		require.NoError(t, engine.CreateEdge(&Edge{ID: EdgeID(fmt.Sprintf("e-%d", 4-i)), StartNode: "hub", EndNode: leaf}))
	}

	got := drain(t, engine.StreamOutgoingEdges(context.Background(), "hub"))
	assert.Equal(t, []EdgeID{"e-4", "e-3", "e-2", "e-1", "e-0"}, got)
}

func TestMemoryEngine_RangeSeesSnapshot(t *testing.T) {
	engine := NewMemoryEngine()
	seedTriangle(t, engine)
	seq := engine.StreamOutgoingEdges(context.Background(), "a")

	// Created before ranging starts: visible.
	require.NoError(t, engine.CreateEdge(&Edge{ID: "ac", StartNode: "a", EndNode: "c"}))

	var got []EdgeID
	for e, err := range seq {
		require.NoError(t, err)
		got = append(got, e.ID)
		if e.ID == "ab" {
			// Created mid-range: not visible.
			require.NoError(t, engine.CreateEdge(&Edge{ID: "aa", StartNode: "a", EndNode: "a"}))
		}
	}
	assert.Equal(t, []EdgeID{"ab", "ac"}, got)
}

func TestMemoryEngine_ReturnsCopies(t *testing.T) {
	engine := NewMemoryEngine()
	props := map[string]any{"key": "original"}
	require.NoError(t, engine.CreateNode(&Node{ID: "n", Labels: []string{"L"}, Properties: props}))
	props["key"] = "caller"

	n, err := engine.GetNode("n")
	require.NoError(t, err)
	assert.Equal(t, "original", n.Properties["key"])

	n.Properties["key"] = "reader"
	n.Labels[0] = "X"
	again, err := engine.GetNode("n")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Properties["key"])
	assert.Equal(t, "L", again.PrimaryLabel())
}

func TestMemoryEngine_ConcurrentAccess(t *testing.T) {
	engine := NewMemoryEngine()
	require.NoError(t, engine.CreateNode(&Node{ID: "hub"}))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leaf := NodeID(fmt.Sprintf("n-%d", i))
			assert.NoError(t, engine.CreateNode(&Node{ID: leaf}))
			assert.NoError(t, engine.CreateEdge(&Edge{ID: EdgeID("e-" + leaf), StartNode: "hub", EndNode: leaf}))
			for _, err := range engine.StreamOutgoingEdges(context.Background(), "hub") {
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, drain(t, engine.StreamOutgoingEdges(context.Background(), "hub")), 20)
}
