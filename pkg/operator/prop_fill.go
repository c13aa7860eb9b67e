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

// PropFillOperator loads the details of the vertex found at a tag, replacing
// the deferred vertex filtered-vertex expansion leaves behind.
type PropFillOperator struct {
	tag    *record.KeyID
	params *graph.QueryParams
	graph  graph.Graph
}

// Apply yields exactly one record: input with the hydrated vertex stored
// back where it was found.
func (op *PropFillOperator) Apply(ctx context.Context, input record.Record) (iter.Seq2[record.Record, error], error) {
	entry, ok := input.Get(op.tag)
	if !ok {
		return nil, getTagError(fmt.Sprintf("get vertex at %v failed", tagField(op.tag, "head")))
	}
	v, ok := entry.AsVertex()
	if !ok {
		return nil, unexpectedDataError(fmt.Sprintf("cannot fill properties of %s entry %s", entry.Kind(), entry), nil)
	}

	full, err := op.graph.GetVertex(ctx, v.ID, op.params)
	if err != nil {
		return nil, backendError(fmt.Sprintf("get vertex %s", v.ID), err)
	}
	out := input.Set(op.tag, record.VertexEntry(full))
	return func(yield func(record.Record, error) bool) {
		yield(out, nil)
	}, nil
}

// GenPropFill generates a PropFillOperator. A node naming no columns loads
// every property.
func GenPropFill(node *plan.PropFill, env BuildEnv) (*PropFillOperator, error) {
	if node == nil {
		return nil, genError(GenPlanDecode, "prop fill node is nil", nil)
	}
	tag, err := env.resolve("tag", node.Tag)
	if err != nil {
		return nil, err
	}
	g, err := env.backend()
	if err != nil {
		return nil, err
	}

	params := &graph.QueryParams{
		Columns:    append([]string(nil), node.Columns...),
		AllColumns: node.AllColumns || len(node.Columns) == 0,
	}
	if err := params.Validate(); err != nil {
		return nil, genError(GenPlanDecode, "validate prop fill params", err)
	}

	env.log().WithFields(logrus.Fields{
		"tag":         tagField(tag, "head"),
		"columns":     params.Columns,
		"all_columns": params.AllColumns,
	}).Debug("generated prop fill operator")
	metrics.OperatorsBuilt.WithLabelValues("prop_fill").Inc()

	return &PropFillOperator{tag: tag, params: params, graph: g}, nil
}
