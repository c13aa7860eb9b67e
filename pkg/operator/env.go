package operator

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/nornicflow/pkg/graph"
	"github.com/orneryd/nornicflow/pkg/plan"
	"github.com/orneryd/nornicflow/pkg/record"
)

// BuildEnv carries what operator generation needs besides the plan node.
type BuildEnv struct {
	// Graph is the backend statements are prepared against. Nil falls back
	// to graph.Default().
	Graph graph.Graph

	// Tags resolves symbolic tag references.
	Tags *plan.TagTable

	// Logger receives one debug line per generated operator. Nil discards.
	Logger *logrus.Logger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (env BuildEnv) log() *logrus.Logger {
	if env.Logger != nil {
		return env.Logger
	}
	return discardLogger
}

func (env BuildEnv) backend() (graph.Graph, error) {
	if env.Graph != nil {
		return env.Graph, nil
	}
	if g, ok := graph.Default(); ok {
		return g, nil
	}
	return nil, genError(GenNullGraph, "no graph in build environment", ErrNullGraph)
}

func (env BuildEnv) resolve(what string, ref *plan.NameOrID) (*record.KeyID, error) {
	tag, err := env.Tags.Resolve(ref)
	if err != nil {
		return nil, genError(GenTagResolution, "resolve "+what, err)
	}
	return tag, nil
}

// tagField renders an optional tag for log fields and messages.
func tagField(tag *record.KeyID, unset string) any {
	if tag == nil {
		return unset
	}
	return *tag
}
