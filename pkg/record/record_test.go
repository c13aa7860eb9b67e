package record

import (
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicflow/pkg/graph"
)

func TestEntry(t *testing.T) {
	v := graph.NewVertex("a", "Person")
	e := VertexEntry(v)
	assert.Equal(t, KindVertex, e.Kind())
	got, ok := e.AsVertex()
	assert.True(t, ok)
	assert.Same(t, v, got)
	_, ok = e.AsPath()
	assert.False(t, ok)

	p := PathEntry(graph.NewPath(v))
	_, ok = p.AsVertex()
	assert.False(t, ok)
	path, ok := p.AsPath()
	assert.True(t, ok)
	assert.Equal(t, 1, path.Len())

	s := ScalarEntry(42)
	n, ok := s.AsScalar()
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	assert.Equal(t, "42", s.String())

	assert.Equal(t, KindNone, Entry{}.Kind())
	assert.Equal(t, "none", Entry{}.Kind().String())
}

func TestRecord_Get(t *testing.T) {
	r := New(VertexEntry(graph.NewVertex("a", "")))

	head, ok := r.Get(nil)
	require.True(t, ok)
	v, _ := head.AsVertex()
	assert.Equal(t, graph.ID("a"), v.ID)

	_, ok = r.Get(Tag(3))
	assert.False(t, ok, "absent tag is reported, not defaulted")

	_, ok = Record{}.Head()
	assert.False(t, ok)
}

func TestRecord_AppendIsCopyOnWrite(t *testing.T) {
	base := New(VertexEntry(graph.NewVertex("a", ""))).Set(Tag(0), ScalarEntry("start"))

	b1 := base.Append(VertexEntry(graph.NewVertex("b", "")), Tag(1))
	b2 := base.Append(VertexEntry(graph.NewVertex("c", "")), Tag(1))

	assert.Equal(t, []KeyID{0}, base.Tags())
	head, _ := base.Head()
	hv, _ := head.AsVertex()
	assert.Equal(t, graph.ID("a"), hv.ID)

	e1, ok := b1.Get(Tag(1))
	require.True(t, ok)
	e2, ok := b2.Get(Tag(1))
	require.True(t, ok)
	v1, _ := e1.AsVertex()
	v2, _ := e2.AsVertex()
	assert.Equal(t, graph.ID("b"), v1.ID)
	assert.Equal(t, graph.ID("c"), v2.ID)

	// Writing to a branch after the fact does not leak into the other.
	b1 = b1.Set(Tag(2), ScalarEntry(true))
	assert.Equal(t, []KeyID{0, 1, 2}, b1.Tags())
	assert.Equal(t, []KeyID{0, 1}, b2.Tags())
}

func TestRecord_AppendWithoutAlias(t *testing.T) {
	base := New(VertexEntry(graph.NewVertex("a", ""))).Set(Tag(0), ScalarEntry(1))
	out := base.Append(VertexEntry(graph.NewVertex("b", "")), nil)

	assert.Equal(t, base.Tags(), out.Tags())
	head, _ := out.Head()
	v, _ := head.AsVertex()
	assert.Equal(t, graph.ID("b"), v.ID)
	assert.Equal(t, 1, out.Len())
}

func TestExpandIter_SiblingsAreIndependent(t *testing.T) {
	origin := New(VertexEntry(graph.NewVertex("a", ""))).Set(Tag(0), ScalarEntry("start"))
	children := seqOf(graph.NewVertex("b", ""), graph.NewVertex("c", ""), graph.NewVertex("d", ""))

	var siblings []Record
	for r, err := range ExpandIter(origin, nil, children, VertexEntry) {
		require.NoError(t, err)
		siblings = append(siblings, r)
	}
	require.Len(t, siblings, 3)

	// Run with -race: each sibling is extended on its own goroutine.
	derived := make([]Record, len(siblings))
	var wg sync.WaitGroup
	for i, r := range siblings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := r
			for j := range 50 {
				out = out.Set(Tag(KeyID(1+j%3)), ScalarEntry(i))
			}
			derived[i] = out
		}()
	}
	wg.Wait()

	for i, r := range derived {
		assert.Equal(t, []KeyID{0, 1, 2, 3}, r.Tags())
		e, ok := r.Get(Tag(1))
		require.True(t, ok)
		n, _ := e.AsScalar()
		assert.Equal(t, i, n)
	}
	for _, r := range siblings {
		assert.Equal(t, []KeyID{0}, r.Tags())
	}
	assert.Equal(t, []KeyID{0}, origin.Tags())
}

func TestRecord_SetHeadKeepsEmptyColumns(t *testing.T) {
	r := New(ScalarEntry(1)).Set(nil, ScalarEntry(2))
	assert.Zero(t, r.Len())
	assert.Equal(t, []KeyID{}, r.Tags())
	head, ok := r.Head()
	require.True(t, ok)
	assert.Equal(t, "2", head.String())
}

func seqOf[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func TestExpandIter(t *testing.T) {
	origin := New(VertexEntry(graph.NewVertex("a", ""))).Set(Tag(0), VertexEntry(graph.NewVertex("a", "")))
	children := seqOf(graph.NewVertex("b", ""), graph.NewVertex("c", ""))

	var ids []graph.ID
	for r, err := range ExpandIter(origin, Tag(1), children, VertexEntry) {
		require.NoError(t, err)
		e, ok := r.Get(Tag(1))
		require.True(t, ok)
		v, _ := e.AsVertex()
		ids = append(ids, v.ID)
		assert.Equal(t, []KeyID{0, 1}, r.Tags())
	}
	assert.Equal(t, []graph.ID{"b", "c"}, ids)
	assert.Equal(t, []KeyID{0}, origin.Tags())
}

func TestExpandIter_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	children := func(yield func(*graph.Edge, error) bool) {
		if !yield(&graph.Edge{ID: "e1"}, nil) {
			return
		}
		yield(nil, boom)
	}

	var got []Record
	var gotErr error
	for r, err := range ExpandIter(New(Entry{}), nil, children, EdgeEntry) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, r)
	}
	assert.Len(t, got, 1)
	assert.ErrorIs(t, gotErr, boom)
}

func TestPathExpandIter(t *testing.T) {
	start := graph.NewVertex("a", "")
	path := graph.NewPath(start)
	origin := New(PathEntry(path)).Set(Tag(5), PathEntry(path))

	children := seqOf(graph.NewVertex("b", ""), graph.NewVertex("c", ""))
	var outs []Record
	for r, err := range PathExpandIter(origin, Tag(5), path, children, graph.VertexElement) {
		require.NoError(t, err)
		outs = append(outs, r)
	}
	require.Len(t, outs, 2)

	for i, want := range []graph.ID{"b", "c"} {
		head, _ := outs[i].Head()
		p, ok := head.AsPath()
		require.True(t, ok)
		assert.Equal(t, 2, p.Len())
		end, err := p.End()
		require.NoError(t, err)
		assert.Equal(t, want, end.ID)

		tagged, ok := outs[i].Get(Tag(5))
		require.True(t, ok)
		tp, _ := tagged.AsPath()
		assert.Equal(t, p.Elements(), tp.Elements())
	}

	// The origin still holds the one-element path.
	e, _ := origin.Get(Tag(5))
	p, _ := e.AsPath()
	assert.Equal(t, 1, p.Len())
	head, _ := origin.Head()
	hp, _ := head.AsPath()
	assert.Equal(t, 1, hp.Len())
}

func TestIteratorsAreLazy(t *testing.T) {
	pulled := 0
	children := func(yield func(*graph.Vertex, error) bool) {
		for _, id := range []graph.ID{"a", "b", "c"} {
			pulled++
			if !yield(graph.NewVertex(id, ""), nil) {
				return
			}
		}
	}

	seq := ExpandIter(New(Entry{}), nil, children, VertexEntry)
	assert.Zero(t, pulled, "building the iterator pulls nothing")

	for range seq {
		break
	}
	assert.Equal(t, 1, pulled)
}
