package operator

import (
	"fmt"

	"github.com/orneryd/nornicflow/pkg/dataflow"
	"github.com/orneryd/nornicflow/pkg/plan"
)

// Compile generates one stage per plan step, in order. When env carries no
// tag table the document's own is used.
func Compile(doc *plan.Document, env BuildEnv) ([]dataflow.FlatMapFunction, error) {
	if doc == nil {
		return nil, genError(GenPlanDecode, "plan document is nil", nil)
	}
	if env.Tags == nil {
		env.Tags = doc.TagTable()
	}

	stages := make([]dataflow.FlatMapFunction, 0, len(doc.Steps))
	for i, step := range doc.Steps {
		switch {
		case step.EdgeExpand != nil:
			op, err := GenEdgeExpand(step.EdgeExpand, env)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			stages = append(stages, op)
		case step.PropFill != nil:
			op, err := GenPropFill(step.PropFill, env)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			stages = append(stages, op)
		default:
			return nil, genError(GenPlanDecode, fmt.Sprintf("step %d holds no node", i), plan.ErrInvalidPlan)
		}
	}
	return stages, nil
}
