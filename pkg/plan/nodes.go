package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/nornicflow/pkg/graph"
)

// Direction is the raw direction carried by a plan node: 0 = out, 1 = in,
// 2 = both. Plan files may also spell it as "out", "in" or "both".
type Direction int32

func (d *Direction) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: direction must be a scalar (line %d)", ErrInvalidDirection, node.Line)
	}
	if node.Tag == "!!int" {
		var raw int32
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*d = Direction(raw)
		return nil
	}
	parsed, err := graph.ParseDirection(node.Value)
	if err != nil {
		return fmt.Errorf("%w: %q (line %d)", ErrInvalidDirection, node.Value, node.Line)
	}
	*d = Direction(parsed)
	return nil
}

// Decode validates the raw value.
func (d Direction) Decode() (graph.Direction, error) {
	if d < 0 || !graph.Direction(d).Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDirection, int32(d))
	}
	return graph.Direction(d), nil
}

// QueryParams is the plan form of graph.QueryParams.
type QueryParams struct {
	Labels     []string `yaml:"labels,omitempty"`
	Filter     *Filter  `yaml:"filter,omitempty"`
	Limit      int      `yaml:"limit,omitempty"`
	Columns    []string `yaml:"columns,omitempty"`
	AllColumns bool     `yaml:"all_columns,omitempty"`
}

// Decode converts p into the typed parameters backends accept. A nil p
// decodes to empty parameters.
func (p *QueryParams) Decode() (*graph.QueryParams, error) {
	if p == nil {
		return &graph.QueryParams{}, nil
	}
	if p.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidPlan, p.Limit)
	}
	out := &graph.QueryParams{
		Labels:     p.Labels,
		Limit:      p.Limit,
		Columns:    p.Columns,
		AllColumns: p.AllColumns,
	}
	if p.Filter != nil {
		pred, err := p.Filter.Predicate()
		if err != nil {
			return nil, err
		}
		out.Filter = pred
	}
	return out, nil
}

// Filter is a predicate expression. Exactly one form must be used per node:
// a comparison (key/op/value), a boolean combination (and, or, not) or a
// label test (has_label).
//
//	filter:
//	  and:
//	    - {key: since, op: ">", value: 2015}
//	    - {key: weight, op: exists}
type Filter struct {
	Key      string   `yaml:"key,omitempty"`
	Op       string   `yaml:"op,omitempty"`
	Value    any      `yaml:"value,omitempty"`
	And      []Filter `yaml:"and,omitempty"`
	Or       []Filter `yaml:"or,omitempty"`
	Not      *Filter  `yaml:"not,omitempty"`
	HasLabel []string `yaml:"has_label,omitempty"`
}

// Predicate builds the graph predicate for f.
func (f *Filter) Predicate() (graph.Predicate, error) {
	forms := 0
	for _, set := range []bool{f.Key != "" || f.Op != "", f.And != nil, f.Or != nil, f.Not != nil, f.HasLabel != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, fmt.Errorf("%w: expected exactly one of key/op, and, or, not, has_label", ErrInvalidFilter)
	}

	switch {
	case f.And != nil:
		preds, err := predicates(f.And)
		if err != nil {
			return nil, err
		}
		return graph.And(preds), nil
	case f.Or != nil:
		preds, err := predicates(f.Or)
		if err != nil {
			return nil, err
		}
		return graph.Or(preds), nil
	case f.Not != nil:
		inner, err := f.Not.Predicate()
		if err != nil {
			return nil, err
		}
		return graph.Not{P: inner}, nil
	case f.HasLabel != nil:
		if len(f.HasLabel) == 0 {
			return nil, fmt.Errorf("%w: has_label needs at least one label", ErrInvalidFilter)
		}
		return graph.HasLabel{Labels: f.HasLabel}, nil
	}

	if f.Key == "" {
		return nil, fmt.Errorf("%w: comparison without key", ErrInvalidFilter)
	}
	op, err := graph.ParseOp(f.Op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if op == graph.OpIn {
		if _, ok := f.Value.([]any); !ok {
			return nil, fmt.Errorf("%w: %q on %q expects a list value", ErrInvalidFilter, op, f.Key)
		}
	}
	if op != graph.OpExists && f.Value == nil {
		return nil, fmt.Errorf("%w: %q on %q needs a value", ErrInvalidFilter, op, f.Key)
	}
	return graph.Compare{Key: f.Key, Op: op, Value: f.Value}, nil
}

func predicates(filters []Filter) ([]graph.Predicate, error) {
	out := make([]graph.Predicate, len(filters))
	for i := range filters {
		p, err := filters[i].Predicate()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// EdgeExpand expands the vertex or path found at VTag along edges.
//
// With IsEdge the matched edges are emitted; otherwise the neighbouring
// vertices are. Results become the record head and, when Alias is set, are
// stored under Alias too.
type EdgeExpand struct {
	VTag      *NameOrID    `yaml:"v_tag,omitempty"`
	Alias     *NameOrID    `yaml:"alias,omitempty"`
	Direction Direction    `yaml:"direction"`
	Params    *QueryParams `yaml:"params,omitempty"`
	IsEdge    bool         `yaml:"is_edge,omitempty"`
}

// PropFill loads the properties of the vertex at Tag.
type PropFill struct {
	Tag        *NameOrID `yaml:"tag,omitempty"`
	Columns    []string  `yaml:"columns,omitempty"`
	AllColumns bool      `yaml:"all_columns,omitempty"`
}
