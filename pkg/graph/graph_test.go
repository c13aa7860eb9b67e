package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"out", Out},
		{"OUT", Out},
		{"outgoing", Out},
		{" in ", In},
		{"both", Both},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.False(t, Direction(7).Valid())
	assert.Equal(t, "direction(7)", Direction(7).String())
}

func TestEdge_OtherEndpoint(t *testing.T) {
	e := &Edge{ID: "e", SrcID: "a", DstID: "b", SrcLabel: "Person", DstLabel: "City", FromSrc: true}
	assert.Equal(t, ID("b"), e.OtherID())
	assert.Equal(t, "City", e.OtherLabel())

	e.FromSrc = false
	assert.Equal(t, ID("a"), e.OtherID())
	assert.Equal(t, "Person", e.OtherLabel())
}

func TestDetails(t *testing.T) {
	assert.True(t, EmptyDetails().IsEmpty())

	props := map[string]any{"name": "Alice"}
	d := NewDetails(props)
	props["name"] = "mutated"

	assert.False(t, d.IsEmpty())
	v, ok := d.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Alice", v)

	out := d.Properties()
	out["name"] = "also mutated"
	v, _ = d.Get("name")
	assert.Equal(t, "Alice", v)

	// Loaded with no properties is not the same as deferred.
	assert.False(t, NewDetails(nil).IsEmpty())
}

func TestPath(t *testing.T) {
	t.Run("append does not alias", func(t *testing.T) {
		p := NewPath(NewVertex("a", "Person"))
		p1 := p.Append(VertexElement(NewVertex("b", "Person")))
		p2 := p.Append(VertexElement(NewVertex("c", "Person")))

		assert.Equal(t, 1, p.Len())
		end1, err := p1.End()
		require.NoError(t, err)
		end2, err := p2.End()
		require.NoError(t, err)
		assert.Equal(t, ID("b"), end1.ID)
		assert.Equal(t, ID("c"), end2.ID)
	})

	t.Run("end after an edge is the far endpoint", func(t *testing.T) {
		p := NewPath(NewVertex("a", "")).Append(EdgeElement(&Edge{
			ID: "ab", SrcID: "a", DstID: "b", DstLabel: "City", FromSrc: true,
		}))
		end, err := p.End()
		require.NoError(t, err)
		assert.Equal(t, ID("b"), end.ID)
		assert.Equal(t, "City", end.Label)
		assert.True(t, end.Details.IsEmpty())
	})

	t.Run("empty path has no end", func(t *testing.T) {
		_, err := Path{}.End()
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("elements is a copy", func(t *testing.T) {
		p := NewPath(NewVertex("a", ""))
		elems := p.Elements()
		elems[0] = VertexElement(NewVertex("z", ""))
		end, _ := p.End()
		assert.Equal(t, ID("a"), end.ID)
		assert.Equal(t, "[v[a]]", p.String())
	})
}

func TestPredicates(t *testing.T) {
	el := PropertyElement{Label: "KNOWS", Properties: map[string]any{
		"since":  int64(2019),
		"weight": 0.5,
		"kind":   "friend",
	}}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq across numeric kinds", Compare{Key: "since", Op: OpEq, Value: 2019}, true},
		{"eq float", Compare{Key: "since", Op: OpEq, Value: 2019.0}, true},
		{"eq string", Compare{Key: "kind", Op: OpEq, Value: "friend"}, true},
		{"ne", Compare{Key: "kind", Op: OpNe, Value: "enemy"}, true},
		{"ne on missing key", Compare{Key: "nope", Op: OpNe, Value: 1}, true},
		{"lt", Compare{Key: "weight", Op: OpLt, Value: 1}, true},
		{"le", Compare{Key: "since", Op: OpLe, Value: 2019}, true},
		{"gt", Compare{Key: "since", Op: OpGt, Value: 2020}, false},
		{"ge", Compare{Key: "since", Op: OpGe, Value: int32(2000)}, true},
		{"string ordering", Compare{Key: "kind", Op: OpLt, Value: "g"}, true},
		{"incomparable kinds", Compare{Key: "kind", Op: OpLt, Value: 3}, false},
		{"missing key", Compare{Key: "nope", Op: OpEq, Value: 1}, false},
		{"in", Compare{Key: "kind", Op: OpIn, Value: []any{"foe", "friend"}}, true},
		{"exists", Compare{Key: "weight", Op: OpExists}, true},
		{"has label", HasLabel{Labels: []string{"LIKES", "KNOWS"}}, true},
		{"and", And{Compare{Key: "since", Op: OpGt, Value: 2000}, HasLabel{Labels: []string{"KNOWS"}}}, true},
		{"or", Or{Compare{Key: "since", Op: OpGt, Value: 3000}, Compare{Key: "kind", Op: OpEq, Value: "friend"}}, true},
		{"empty or", Or{}, false},
		{"not", Not{P: Compare{Key: "kind", Op: OpEq, Value: "friend"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pred.Eval(el)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Compare{Key: "kind", Op: OpIn, Value: "friend"}.Eval(el)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = Compare{Key: "kind", Op: "like", Value: "f%"}.Eval(el)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp(">=")
	require.NoError(t, err)
	assert.Equal(t, OpGe, op)

	_, err = ParseOp("~=")
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestQueryParams(t *testing.T) {
	t.Run("validate", func(t *testing.T) {
		assert.NoError(t, (*QueryParams)(nil).Validate())
		assert.ErrorIs(t, (&QueryParams{Limit: -1}).Validate(), ErrInvalidParams)
		assert.ErrorIs(t, (&QueryParams{Labels: []string{""}}).Validate(), ErrInvalidParams)
	})

	t.Run("clone detaches slices", func(t *testing.T) {
		p := &QueryParams{Labels: []string{"A"}, Columns: []string{"x"}}
		c := p.Clone()
		p.Labels[0] = "B"
		assert.Equal(t, []string{"A"}, c.Labels)
		assert.NotNil(t, (*QueryParams)(nil).Clone())
	})

	t.Run("project", func(t *testing.T) {
		props := map[string]any{"a": 1, "b": 2}
		assert.True(t, (&QueryParams{}).Project(props).IsEmpty())

		d := (&QueryParams{Columns: []string{"a", "missing"}}).Project(props)
		assert.False(t, d.IsEmpty())
		assert.Equal(t, 1, d.Len())

		all := (&QueryParams{AllColumns: true}).Project(props)
		assert.Equal(t, 2, all.Len())
	})

	t.Run("limit", func(t *testing.T) {
		p := &QueryParams{Limit: 2}
		assert.False(t, p.Exhausted(1))
		assert.True(t, p.Exhausted(2))
		assert.False(t, (&QueryParams{}).Exhausted(100))
	})
}

type stubGraph struct{}

func (stubGraph) PrepareExploreEdge(Direction, *QueryParams) (Statement[*Edge], error) {
	return nil, nil
}

func (stubGraph) PrepareExploreVertex(Direction, *QueryParams) (Statement[*Vertex], error) {
	return nil, nil
}

func (stubGraph) GetVertex(context.Context, ID, *QueryParams) (*Vertex, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	_, ok := Default()
	assert.False(t, ok)

	Register(stubGraph{})
	g, ok := Default()
	assert.True(t, ok)
	assert.Equal(t, stubGraph{}, g)

	Reset()
	_, ok = Default()
	assert.False(t, ok)
}
